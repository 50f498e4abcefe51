package store

import (
	"context"
	"fmt"

	"github.com/faucetdb/licensed/internal/model"
)

const bindingColumns = "id, hardware_id, activation_code, license_type, expiry_date, activated_at"

func normalizeBinding(b *model.Binding) {
	b.ExpiresAt = b.ExpiresAt.UTC()
	b.ActivatedAt = b.ActivatedAt.UTC()
}

func (q queries) bindingWhere(ctx context.Context, where string, arg interface{}) (*model.Binding, error) {
	var b model.Binding
	if err := q.get(ctx, &b, "SELECT "+bindingColumns+" FROM activations WHERE "+where, arg); err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get binding: %w", err)
	}
	normalizeBinding(&b)
	return &b, nil
}

// BindingByHardware returns the binding for a hardware identifier.
func (q queries) BindingByHardware(ctx context.Context, hardwareID string) (*model.Binding, error) {
	return q.bindingWhere(ctx, "hardware_id = ?", hardwareID)
}

// BindingByCode returns the binding that references code.
func (q queries) BindingByCode(ctx context.Context, code string) (*model.Binding, error) {
	return q.bindingWhere(ctx, "activation_code = ?", code)
}

// BindingByID returns the binding with the given id.
func (q queries) BindingByID(ctx context.Context, id int64) (*model.Binding, error) {
	return q.bindingWhere(ctx, "id = ?", id)
}

// InsertBinding creates a binding and populates its ID. If another
// transaction bound the same hardware id first, ErrConflict is returned.
func (q queries) InsertBinding(ctx context.Context, b *model.Binding) error {
	normalizeBinding(b)
	_, err := q.exec(ctx, `INSERT INTO activations
		(hardware_id, activation_code, license_type, expiry_date, activated_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.HardwareID, b.Code, b.LicenseType, b.ExpiresAt, b.ActivatedAt)
	if err != nil {
		if q.conn.IsUniqueViolation(err) {
			return fmt.Errorf("insert binding for %q: %w", b.HardwareID, ErrConflict)
		}
		return fmt.Errorf("insert binding: %w", err)
	}

	if err := q.get(ctx, &b.ID, "SELECT id FROM activations WHERE hardware_id = ?", b.HardwareID); err != nil {
		return fmt.Errorf("get binding id: %w", err)
	}
	return nil
}

// UpdateBinding rewrites the code, terms and activation time of an existing
// binding in place.
func (q queries) UpdateBinding(ctx context.Context, b *model.Binding) error {
	normalizeBinding(b)
	n, err := q.execAffected(ctx, `UPDATE activations
		SET activation_code = ?, license_type = ?, expiry_date = ?, activated_at = ?
		WHERE id = ?`,
		b.Code, b.LicenseType, b.ExpiresAt, b.ActivatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("update binding: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBinding removes the binding with the given id while it is still on
// code, and reports whether a row was removed. The code's usage flag is left
// to the caller.
func (q queries) DeleteBinding(ctx context.Context, id int64, code string) (bool, error) {
	n, err := q.execAffected(ctx, "DELETE FROM activations WHERE id = ? AND activation_code = ?", id, code)
	if err != nil {
		return false, fmt.Errorf("delete binding: %w", err)
	}
	return n > 0, nil
}

// ListBindings returns a page of bindings joined with their codes, most
// recently activated first.
func (q queries) ListBindings(ctx context.Context, page model.Page) ([]model.BindingView, error) {
	page = page.Normalize()
	query := `SELECT a.id, a.hardware_id, a.activation_code, a.license_type, a.expiry_date, a.activated_at,
			c.license_type AS code_license_type, c.duration
		FROM activations a
		JOIN activation_codes c ON c.code = a.activation_code
		ORDER BY a.activated_at DESC, a.id DESC ` + q.conn.Paginate(page.Limit, page.Offset)

	views := []model.BindingView{}
	if err := q.sel(ctx, &views, query); err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	for i := range views {
		normalizeBinding(&views[i].Binding)
	}
	return views, nil
}

// CountBindings returns the number of bindings.
func (q queries) CountBindings(ctx context.Context) (int64, error) {
	var n int64
	if err := q.get(ctx, &n, "SELECT COUNT(*) FROM activations"); err != nil {
		return 0, fmt.Errorf("count bindings: %w", err)
	}
	return n, nil
}
