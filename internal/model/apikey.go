package model

import "time"

// API key scopes. Read keys can list and query; admin keys can also generate
// and delete.
const (
	ScopeRead  = "read"
	ScopeAdmin = "admin"
)

// APIKey represents an API key used by automation against the admin API.
// The raw key is never stored; only a SHA-256 hash and a short prefix for
// identification are persisted.
type APIKey struct {
	ID        int64      `json:"id" db:"id"`
	KeyHash   string     `json:"-" db:"key_hash"`            // SHA-256 hash, never expose
	KeyPrefix string     `json:"key_prefix" db:"key_prefix"` // First 16 chars for identification
	Label     string     `json:"label" db:"label"`
	Scope     string     `json:"scope" db:"scope"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty" db:"last_used"`
}

// ValidScope reports whether s names a known API key scope.
func ValidScope(s string) bool {
	return s == ScopeRead || s == ScopeAdmin
}
