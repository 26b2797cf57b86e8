// Command seed-db loads demo products and API keys into the database so a
// fresh deployment is immediately usable.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/averline/marketplace/internal/domain/auth"
	"github.com/averline/marketplace/internal/storage/postgres"
)

type seedFile struct {
	Users    []seedUser    `json:"users"`
	Products []seedProduct `json:"products"`
}

type seedUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	APIKey string `json:"apiKey"`
}

type seedProduct struct {
	ID       string          `json:"id"`
	VendorID string          `json:"vendorId"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
		pepper      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to seed JSON file")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or MARKET_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("MARKET_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, pepper string) error {
	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	hasher := auth.NewAuthenticator(nil, []byte(pepper))
	keys := postgres.NewAPIKeyRepository(pool)

	for _, u := range seed.Users {
		role, err := auth.ParseRole(u.Role)
		if err != nil {
			return errors.Wrapf(err, "user %s", u.ID)
		}
		err = keys.Insert(ctx, &auth.APIKey{
			ID:      uuid.New().String(),
			KeyHash: hasher.HashKey(u.APIKey),
			UserID:  u.ID,
			Role:    role,
			Name:    u.Name,
		})
		if err != nil {
			return err
		}
	}
	slog.Info("seeded api keys", slog.Int("count", len(seed.Users)))

	for _, p := range seed.Products {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := pool.Exec(ctx,
			`INSERT INTO products (id, vendor_id, name, category, price)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET
			     name = EXCLUDED.name,
			     category = EXCLUDED.category,
			     price = EXCLUDED.price`,
			id, p.VendorID, p.Name, p.Category, p.Price)
		if err != nil {
			return errors.Wrapf(err, "seed product %s", p.Name)
		}
	}
	slog.Info("seeded products", slog.Int("count", len(seed.Products)))

	return nil
}
