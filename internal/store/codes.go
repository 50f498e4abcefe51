package store

import (
	"context"
	"fmt"
	"time"

	"github.com/faucetdb/licensed/internal/model"
)

const codeColumns = "id, code, license_type, duration, is_used, created_at"

func normalizeCode(c *model.ActivationCode) {
	c.CreatedAt = c.CreatedAt.UTC()
}

// GetCode returns the activation code with the given token.
func (q queries) GetCode(ctx context.Context, code string) (*model.ActivationCode, error) {
	var c model.ActivationCode
	err := q.get(ctx, &c, "SELECT "+codeColumns+" FROM activation_codes WHERE code = ?", code)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get code: %w", err)
	}
	normalizeCode(&c)
	return &c, nil
}

// GetCodeByID returns the activation code with the given id.
func (q queries) GetCodeByID(ctx context.Context, id int64) (*model.ActivationCode, error) {
	var c model.ActivationCode
	err := q.get(ctx, &c, "SELECT "+codeColumns+" FROM activation_codes WHERE id = ?", id)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get code by id: %w", err)
	}
	normalizeCode(&c)
	return &c, nil
}

// LockCode reads the activation code and holds a row lock on it until the
// transaction ends. Concurrent activations of the same code queue here.
func (t *Tx) LockCode(ctx context.Context, code string) (*model.ActivationCode, error) {
	query := "SELECT " + codeColumns + " FROM activation_codes " + t.conn.TableHint() +
		" WHERE code = ? " + t.conn.LockClause()

	var c model.ActivationCode
	if err := t.get(ctx, &c, query, code); err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock code: %w", err)
	}
	normalizeCode(&c)
	return &c, nil
}

// InsertCode stores a new unused activation code and populates its ID.
// A code that already exists yields ErrDuplicate; the transaction remains
// usable so the caller can try a fresh token.
func (q queries) InsertCode(ctx context.Context, c *model.ActivationCode) error {
	c.CreatedAt = c.CreatedAt.UTC()
	c.IsUsed = false

	n, err := q.execAffected(ctx, q.conn.InsertCodeQuery(), c.Code, c.LicenseType, c.DurationDays, c.CreatedAt)
	if err != nil {
		if q.conn.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert code: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}

	if err := q.get(ctx, &c.ID, "SELECT id FROM activation_codes WHERE code = ?", c.Code); err != nil {
		return fmt.Errorf("get code id: %w", err)
	}
	return nil
}

// SetCodeUsed flips the usage flag of a code.
func (q queries) SetCodeUsed(ctx context.Context, code string, used bool) error {
	n, err := q.execAffected(ctx, "UPDATE activation_codes SET is_used = "+q.lit(used)+" WHERE code = ?", code)
	if err != nil {
		return fmt.Errorf("update code usage: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q queries) codeFilterClause(filter model.CodeFilter) string {
	switch filter {
	case model.CodeFilterUsed:
		return " WHERE is_used = " + q.lit(true)
	case model.CodeFilterUnused:
		return " WHERE is_used = " + q.lit(false)
	default:
		return ""
	}
}

// ListCodes returns a page of codes, newest first.
func (q queries) ListCodes(ctx context.Context, filter model.CodeFilter, page model.Page) ([]model.ActivationCode, error) {
	page = page.Normalize()
	query := "SELECT " + codeColumns + " FROM activation_codes" + q.codeFilterClause(filter) +
		" ORDER BY created_at DESC, id DESC " + q.conn.Paginate(page.Limit, page.Offset)

	codes := []model.ActivationCode{}
	if err := q.sel(ctx, &codes, query); err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	for i := range codes {
		normalizeCode(&codes[i])
	}
	return codes, nil
}

// CountCodes returns the number of codes matching filter.
func (q queries) CountCodes(ctx context.Context, filter model.CodeFilter) (int64, error) {
	var n int64
	if err := q.get(ctx, &n, "SELECT COUNT(*) FROM activation_codes"+q.codeFilterClause(filter)); err != nil {
		return 0, fmt.Errorf("count codes: %w", err)
	}
	return n, nil
}

// DeleteUnusedCode deletes the code with the given id only if it is unused
// and no binding references it. It reports whether a row was deleted.
func (q queries) DeleteUnusedCode(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM activation_codes
		WHERE id = ? AND is_used = ` + q.lit(false) + `
		AND NOT EXISTS (SELECT 1 FROM activations WHERE activations.activation_code = activation_codes.code)`

	n, err := q.execAffected(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete code: %w", err)
	}
	return n > 0, nil
}

// Stats aggregates code and binding counts. Bindings expiring at or after
// now count as active.
func (q queries) Stats(ctx context.Context, now time.Time) (*model.CodeStats, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM activation_codes) AS total_codes,
		(SELECT COUNT(*) FROM activation_codes WHERE is_used = ` + q.lit(true) + `) AS used_codes,
		(SELECT COUNT(*) FROM activation_codes WHERE is_used = ` + q.lit(false) + `) AS unused_codes,
		(SELECT COUNT(*) FROM activations) AS bindings,
		(SELECT COUNT(*) FROM activations WHERE expiry_date >= ?) AS active_bindings`

	var st model.CodeStats
	if err := q.get(ctx, &st, query, now.UTC()); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &st, nil
}
