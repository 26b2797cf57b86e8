package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// APIKey is a stored credential mapping a key hash to a user and role. The
// raw key is never stored; only its HMAC-SHA256 hash.
type APIKey struct {
	ID      string
	KeyHash string
	UserID  string
	Role    Role
	Name    string
}

// KeyRepository provides lookup of API keys by their HMAC hash.
type KeyRepository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}

// Authenticator resolves a raw API key to an Actor. It is the boundary to the
// external authentication collaborator: everything past it deals only in
// (userID, role) pairs.
type Authenticator struct {
	keys   KeyRepository
	pepper []byte
}

// NewAuthenticator creates an Authenticator with the given key repository and
// HMAC pepper.
func NewAuthenticator(keys KeyRepository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// HashKey computes the hex HMAC-SHA256 of a raw API key under the pepper.
// Exposed so seeding tools produce the same hash the server looks up.
func (a *Authenticator) HashKey(raw string) string {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Resolve authenticates a raw API key. An empty key resolves to the anonymous
// actor without error; an invalid or unknown key fails ErrUnauthenticated.
// The stored hash is compared in constant time even though the lookup is
// already by hash, so a stale or mismatched row cannot slip through.
func (a *Authenticator) Resolve(ctx context.Context, rawKey string) (Actor, error) {
	if rawKey == "" {
		return Anonymous(), nil
	}

	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(rawKey))
	sum := mac.Sum(nil)

	key, err := a.keys.FindByHash(ctx, hex.EncodeToString(sum))
	if err != nil {
		return Anonymous(), ErrUnauthenticated
	}

	stored, err := hex.DecodeString(key.KeyHash)
	if err != nil {
		return Anonymous(), ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare(sum, stored) != 1 {
		return Anonymous(), ErrUnauthenticated
	}

	return Actor{UserID: key.UserID, Role: key.Role}, nil
}
