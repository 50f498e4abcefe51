package license

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/store"
)

// Gateway serves the administrative reads and deletions. Deletions go
// through the same gates the engine relies on: a used code is never
// deleted, and removing a binding makes its code available again.
type Gateway struct {
	store *store.Store
	opts  options
}

// NewGateway returns a Gateway over s.
func NewGateway(s *store.Store, opts ...Option) *Gateway {
	return &Gateway{store: s, opts: buildOptions(opts)}
}

// CodeList is a page of codes with the total matching the filter.
type CodeList struct {
	Codes []model.ActivationCode
	Total int64
	Page  model.Page
}

// BindingList is a page of bindings with the total count.
type BindingList struct {
	Bindings []model.BindingView
	Total    int64
	Page     model.Page
}

// ListCodes returns codes matching filter, newest first.
func (g *Gateway) ListCodes(ctx context.Context, filter model.CodeFilter, page model.Page) (*CodeList, error) {
	page = page.Normalize()
	codes, err := g.store.ListCodes(ctx, filter, page)
	if err != nil {
		return nil, asStorage(err)
	}
	total, err := g.store.CountCodes(ctx, filter)
	if err != nil {
		return nil, asStorage(err)
	}
	return &CodeList{Codes: codes, Total: total, Page: page}, nil
}

// ListBindings returns bindings with their code terms, most recently
// activated first.
func (g *Gateway) ListBindings(ctx context.Context, page model.Page) (*BindingList, error) {
	page = page.Normalize()
	views, err := g.store.ListBindings(ctx, page)
	if err != nil {
		return nil, asStorage(err)
	}
	total, err := g.store.CountBindings(ctx)
	if err != nil {
		return nil, asStorage(err)
	}
	return &BindingList{Bindings: views, Total: total, Page: page}, nil
}

// DeleteCode deletes an unused, unbound code. It returns false and changes
// nothing when the code is missing, used, or still referenced.
func (g *Gateway) DeleteCode(ctx context.Context, id int64) (bool, error) {
	ok, err := g.store.DeleteUnusedCode(ctx, id)
	if err != nil {
		return false, asStorage(err)
	}
	if ok {
		g.opts.logger.Info("activation code deleted", "code_id", id)
	}
	return ok, nil
}

// DeleteBinding removes a binding and marks its code unused in the same
// transaction, so the code can be activated again. It returns false
// without side effects when the binding does not exist.
func (g *Gateway) DeleteBinding(ctx context.Context, id int64) (bool, error) {
	var removed *model.Binding
	err := g.store.InTx(ctx, func(tx *store.Tx) error {
		removed = nil
		b, err := tx.BindingByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := releaseBinding(ctx, tx, b); err != nil {
			return err
		}
		removed = b
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, asStorage(err)
	}
	g.opts.logger.Info("binding deleted, code released",
		"binding_id", id, "hardware_id", removed.HardwareID, "code", removed.Code)
	return true, nil
}

// releaseBinding deletes b and frees its code. b may have been read before
// a concurrent rebind moved it to another code; the delete only matches the
// code that gets freed, and a moved binding yields store.ErrConflict so
// InTx retries against the current row. ErrNotFound means b is gone.
func releaseBinding(ctx context.Context, tx *store.Tx, b *model.Binding) error {
	// Lock the code so a concurrent activation waits for the reset.
	if _, err := tx.LockCode(ctx, b.Code); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	ok, err := tx.DeleteBinding(ctx, b.ID, b.Code)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := tx.BindingByID(ctx, b.ID); err != nil {
			return err
		}
		return fmt.Errorf("binding %d moved off code %s: %w", b.ID, b.Code, store.ErrConflict)
	}
	if err := tx.SetCodeUsed(ctx, b.Code, false); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// BindingForHardware returns the binding of hardwareID, or nil if there is
// none.
func (g *Gateway) BindingForHardware(ctx context.Context, hardwareID string) (*model.Binding, error) {
	in := hardwareInput{HardwareID: strings.TrimSpace(hardwareID)}
	if err := check(in); err != nil {
		return nil, err
	}
	b, err := g.store.BindingByHardware(ctx, in.HardwareID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, asStorage(err)
	}
	return b, nil
}

// DeleteHardware releases the binding of hardwareID. It returns false when
// the hardware id is not bound.
func (g *Gateway) DeleteHardware(ctx context.Context, hardwareID string) (bool, error) {
	b, err := g.BindingForHardware(ctx, hardwareID)
	if err != nil || b == nil {
		return false, err
	}
	return g.DeleteBinding(ctx, b.ID)
}

// Stats returns aggregate counts. Active bindings are those not expired at
// the gateway's clock.
func (g *Gateway) Stats(ctx context.Context) (*model.CodeStats, error) {
	st, err := g.store.Stats(ctx, g.opts.clock())
	if err != nil {
		return nil, asStorage(err)
	}
	return st, nil
}
