package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averline/marketplace/internal/domain/auth"
)

var _ auth.KeyRepository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash. Keys with a
// role label this binary does not recognize are treated as missing.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKey, error) {
	var (
		key  auth.APIKey
		role string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, key_hash, user_id, role, name
		 FROM api_keys WHERE key_hash = $1 AND active`,
		hash).Scan(&key.ID, &key.KeyHash, &key.UserID, &role, &key.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(err, "api key not found")
		}
		return nil, errors.Wrap(err, "find api key by hash")
	}

	key.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, errors.Wrapf(err, "api key %s", key.ID)
	}
	return &key, nil
}

// Insert stores a key row. Used by seeding tools.
func (r *APIKeyRepository) Insert(ctx context.Context, key *auth.APIKey) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (id, key_hash, user_id, role, name)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key_hash) DO NOTHING`,
		key.ID, key.KeyHash, key.UserID, key.Role.String(), key.Name)
	if err != nil {
		return errors.Wrapf(err, "insert api key %s", key.ID)
	}
	return nil
}
