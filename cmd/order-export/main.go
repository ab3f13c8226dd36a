// Command order-export dumps orders as gzip-compressed JSON lines, one
// order per line, for offline reporting. The query and the compressing
// writer run concurrently.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/avelir/storefront/internal/domain/order"
	"github.com/avelir/storefront/internal/repository"
)

const listOrderIDsSQL = `SELECT id FROM orders WHERE created >= $1 ORDER BY created`

// exportRecord is one JSON line in the export.
type exportRecord struct {
	ID       string          `json:"id"`
	Email    string          `json:"email"`
	Created  time.Time       `json:"created"`
	Paid     bool            `json:"paid"`
	Discount int             `json:"discount"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
	Items    []exportItem    `json:"items"`
}

type exportItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func main() {
	var (
		databaseURL string
		outPath     string
		sinceDays   int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&outPath, "out", "orders.jsonl.gz", "output file path")
	flag.IntVar(&sinceDays, "since-days", 30, "export orders created in the last N days")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, outPath, sinceDays); err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("export completed", slog.String("path", outPath))
}

func run(ctx context.Context, databaseURL, outPath string, sinceDays int) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrap(err, "create output file")
	}
	defer func() { _ = out.Close() }()

	orders := repository.NewOrderRepository(pool)
	since := time.Now().AddDate(0, 0, -sinceDays)

	records := make(chan exportRecord, 64)
	g, ctx := errgroup.WithContext(ctx)

	// Producer: stream order IDs, hydrate each order with its items.
	g.Go(func() error {
		defer close(records)

		rows, err := pool.Query(ctx, listOrderIDsSQL, since)
		if err != nil {
			return errors.Wrap(err, "list orders")
		}
		ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
			var id string
			err := row.Scan(&id)
			return id, err
		})
		if err != nil {
			return errors.Wrap(err, "collect order ids")
		}

		for _, id := range ids {
			o, err := orders.GetByID(ctx, id)
			if err != nil {
				return errors.Wrapf(err, "load order %s", id)
			}
			select {
			case records <- toRecord(o):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	// Consumer: compress and write one JSON line per order.
	g.Go(func() error {
		zw := pgzip.NewWriter(out)
		enc := json.NewEncoder(zw)
		count := 0
		for rec := range records {
			if err := enc.Encode(rec); err != nil {
				return errors.Wrapf(err, "encode order %s", rec.ID)
			}
			count++
		}
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, "close gzip writer")
		}
		slog.Info("orders written", slog.Int("count", count))
		return nil
	})

	return g.Wait()
}

func toRecord(o *order.Order) exportRecord {
	items := make([]exportItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = exportItem{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Price:     it.Price,
			Quantity:  it.Quantity,
		}
	}
	return exportRecord{
		ID:       o.ID,
		Email:    o.Email,
		Created:  o.Created,
		Paid:     o.Paid,
		Discount: o.Discount,
		Subtotal: o.TotalBeforeDiscount(),
		Total:    o.TotalCost(),
		Items:    items,
	}
}
