package store

import (
	"context"
	"fmt"
	"time"

	"github.com/faucetdb/licensed/internal/model"
)

const adminColumns = "id, email, password_hash, name, is_active, last_login_at, created_at, updated_at"

func normalizeAdmin(a *model.Admin) {
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if a.LastLoginAt != nil {
		t := a.LastLoginAt.UTC()
		a.LastLoginAt = &t
	}
}

// CreateAdmin inserts a new admin account. The ID, CreatedAt, and UpdatedAt
// fields are populated after a successful insert. An existing email yields
// ErrDuplicate.
func (q queries) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC().Truncate(time.Second)
	admin.CreatedAt = now
	admin.UpdatedAt = now

	_, err := q.exec(ctx, `INSERT INTO admins
		(email, password_hash, name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, `+q.lit(admin.IsActive)+`, ?, ?)`,
		admin.Email, admin.PasswordHash, admin.Name, admin.CreatedAt, admin.UpdatedAt)
	if err != nil {
		if q.conn.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert admin: %w", err)
	}

	if err := q.get(ctx, &admin.ID, "SELECT id FROM admins WHERE email = ?", admin.Email); err != nil {
		return fmt.Errorf("get admin id: %w", err)
	}
	return nil
}

// GetAdminByEmail returns an admin by email address.
func (q queries) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	if err := q.get(ctx, &admin, "SELECT "+adminColumns+" FROM admins WHERE email = ?", email); err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	normalizeAdmin(&admin)
	return &admin, nil
}

// ListAdmins returns all admin accounts.
func (q queries) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	admins := []model.Admin{}
	if err := q.sel(ctx, &admins, "SELECT "+adminColumns+" FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	for i := range admins {
		normalizeAdmin(&admins[i])
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists.
func (q queries) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int64
	if err := q.get(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// UpdateAdminPassword replaces the password hash of the admin with email.
func (q queries) UpdateAdminPassword(ctx context.Context, email, hash string) error {
	now := time.Now().UTC().Truncate(time.Second)
	n, err := q.execAffected(ctx,
		"UPDATE admins SET password_hash = ?, updated_at = ? WHERE email = ?", hash, now, email)
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin.
func (q queries) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC().Truncate(time.Second)
	n, err := q.execAffected(ctx,
		"UPDATE admins SET last_login_at = ?, updated_at = ? WHERE id = ?", now, now, id)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
