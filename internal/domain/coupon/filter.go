package coupon

import (
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const filterFalsePositiveRate = 0.001

// CodeFilter is a bloom-filter front for coupon code lookups. A miss means
// the code definitely does not exist and the database query can be skipped;
// a hit still requires a repository lookup. Codes are matched
// case-insensitively, mirroring the repository's lookup semantics.
type CodeFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter builds a filter sized for the given codes and seeds it.
func NewCodeFilter(codes []string) *CodeFilter {
	n := uint(len(codes))
	if n < 1024 {
		n = 1024
	}
	f := bloom.NewWithEstimates(n, filterFalsePositiveRate)
	for _, code := range codes {
		f.AddString(strings.ToUpper(code))
	}
	return &CodeFilter{filter: f}
}

// MayContain reports whether the code could exist. False negatives never
// occur; false positives occur at the configured rate.
func (cf *CodeFilter) MayContain(code string) bool {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return cf.filter.TestString(strings.ToUpper(code))
}

// Add records a newly created coupon code.
func (cf *CodeFilter) Add(code string) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	cf.filter.AddString(strings.ToUpper(code))
}
