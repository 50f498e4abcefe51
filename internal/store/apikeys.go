package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/faucetdb/licensed/internal/model"
)

const apiKeyColumns = "id, key_hash, key_prefix, label, scope, is_active, expires_at, created_at, last_used"

func normalizeAPIKey(k *model.APIKey) {
	k.CreatedAt = k.CreatedAt.UTC()
	for _, p := range []**time.Time{&k.ExpiresAt, &k.LastUsed} {
		if *p != nil {
			t := (*p).UTC()
			*p = &t
		}
	}
}

// CreateAPIKey inserts a new API key record. The key_hash must already be set
// (use HashAPIKey). The ID and CreatedAt fields are populated after insert.
func (q queries) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC().Truncate(time.Second)
	if key.Scope == "" {
		key.Scope = model.ScopeRead
	}

	_, err := q.exec(ctx, `INSERT INTO api_keys
		(key_hash, key_prefix, label, scope, is_active, expires_at, created_at)
		VALUES (?, ?, ?, ?, `+q.lit(key.IsActive)+`, ?, ?)`,
		key.KeyHash, key.KeyPrefix, key.Label, key.Scope, key.ExpiresAt, key.CreatedAt)
	if err != nil {
		if q.conn.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert api key: %w", err)
	}

	if err := q.get(ctx, &key.ID, "SELECT id FROM api_keys WHERE key_hash = ?", key.KeyHash); err != nil {
		return fmt.Errorf("get api key id: %w", err)
	}
	return nil
}

// GetAPIKeyByHash looks up an API key by its SHA-256 hash.
func (q queries) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	if err := q.get(ctx, &key, "SELECT "+apiKeyColumns+" FROM api_keys WHERE key_hash = ?", hash); err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	normalizeAPIKey(&key)
	return &key, nil
}

// ListAPIKeys returns all API keys, newest first.
func (q queries) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	keys := []model.APIKey{}
	if err := q.sel(ctx, &keys, "SELECT "+apiKeyColumns+" FROM api_keys ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	for i := range keys {
		normalizeAPIKey(&keys[i])
	}
	return keys, nil
}

// RevokeAPIKey marks an API key as inactive by ID.
func (q queries) RevokeAPIKey(ctx context.Context, id int64) error {
	n, err := q.execAffected(ctx, "UPDATE api_keys SET is_active = "+q.lit(false)+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAPIKeyByPrefix marks an active API key as inactive by its prefix.
func (q queries) RevokeAPIKeyByPrefix(ctx context.Context, prefix string) error {
	n, err := q.execAffected(ctx,
		"UPDATE api_keys SET is_active = "+q.lit(false)+" WHERE key_prefix = ? AND is_active = "+q.lit(true), prefix)
	if err != nil {
		return fmt.Errorf("revoke api key by prefix: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed sets the last_used timestamp for an API key.
func (q queries) UpdateAPIKeyLastUsed(ctx context.Context, id int64) error {
	now := time.Now().UTC().Truncate(time.Second)
	n, err := q.execAffected(ctx, "UPDATE api_keys SET last_used = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HashAPIKey returns the hex-encoded SHA-256 hash of a raw API key string.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
