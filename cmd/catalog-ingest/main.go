// Command catalog-ingest bulk-loads vendor catalog feeds into the products
// table. Feeds are gzip-compressed JSON lines files; the same product id may
// appear in several feeds, so rows are deduplicated in memory with a bloom
// filter before hitting the database, and the insert itself is idempotent.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/averline/marketplace/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 1_000
	progressEvery = 100_000
)

type feedProduct struct {
	ID       string          `json:"id"`
	VendorID string          `json:"vendor_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog *.jsonl.gz feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz feed files in %s", dataDir)
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Parsers run one per feed file; a single writer owns the bloom filter
	// and the database batches, so dedup needs no locking.
	products := make(chan feedProduct, 4*batchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(products)

		parsers, pctx := errgroup.WithContext(gctx)
		for _, file := range files {
			parsers.Go(func() error {
				return parseFeed(pctx, file, products)
			})
		}
		return parsers.Wait()
	})

	var written int64
	g.Go(func() error {
		n, err := writeProducts(gctx, pool, products)
		written = n
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest finished", slog.Int64("products", written), slog.Int("files", len(files)))
	return nil
}

// parseFeed streams one gzip feed file, sending each well-formed line
// downstream. Malformed lines are counted and skipped, not fatal: one bad
// vendor row must not sink the whole import.
func parseFeed(ctx context.Context, path string, out chan<- feedProduct) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader %s", path)
	}
	defer gz.Close()

	var malformed int
	sc := bufio.NewScanner(gz)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<20)
	for sc.Scan() {
		var p feedProduct
		if err := json.Unmarshal(sc.Bytes(), &p); err != nil || p.ID == "" || p.VendorID == "" {
			malformed++
			continue
		}

		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	if malformed > 0 {
		slog.Warn("skipped malformed feed lines",
			slog.String("file", filepath.Base(path)),
			slog.Int("count", malformed))
	}
	return nil
}

// writeProducts dedups the stream and inserts it in batches. The bloom
// filter short-circuits duplicates cheaply; its false positives are harmless
// here because the insert is ON CONFLICT DO NOTHING anyway, so a rare skipped
// row only matters if it was never inserted before, which the filter's low
// error rate makes acceptable for feed ingestion.
func writeProducts(ctx context.Context, pool *pgxpool.Pool, in <-chan feedProduct) (int64, error) {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	var (
		total int64
		batch = &pgx.Batch{}
	)

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "flush batch")
		}
		batch = &pgx.Batch{}
		return nil
	}

	for p := range in {
		if seen.TestOrAddString(p.ID) {
			continue
		}

		batch.Queue(
			`INSERT INTO products (id, vendor_id, name, category, price)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING`,
			p.ID, p.VendorID, p.Name, p.Category, p.Price)
		total++

		if batch.Len() >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
		if total%progressEvery == 0 {
			slog.Info("ingest progress", slog.Int64("products", total))
		}
	}

	return total, flush()
}
