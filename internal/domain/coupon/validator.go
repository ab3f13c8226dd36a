package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator resolves a coupon code to a coupon that is usable right now.
type Validator interface {
	Resolve(ctx context.Context, code string) (*Coupon, error)
}

// RepoValidator implements Validator by consulting the bloom code filter
// first and the Repository second.
type RepoValidator struct {
	repo   Repository
	filter *CodeFilter
	now    func() time.Time
}

// NewRepoValidator creates a RepoValidator. The filter may be nil, in which
// case every lookup goes to the repository.
func NewRepoValidator(repo Repository, filter *CodeFilter) *RepoValidator {
	return &RepoValidator{repo: repo, filter: filter, now: time.Now}
}

// Resolve looks up the coupon for the given code and checks that it is
// active and inside its validity window. Returns ErrNotFound for unknown
// codes and ErrNotUsable for known but currently unusable ones.
func (v *RepoValidator) Resolve(ctx context.Context, code string) (*Coupon, error) {
	if v.filter != nil && !v.filter.MayContain(code) {
		return nil, ErrNotFound
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.UsableAt(v.now()) {
		return nil, ErrNotUsable
	}
	return c, nil
}
