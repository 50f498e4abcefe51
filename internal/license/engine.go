package license

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/store"
)

// Activation outcomes reported to the Recorder.
const (
	ResultActivated    = "activated"
	ResultRenewed      = "renewed"
	ResultRebound      = "rebound"
	ResultInvalidCode  = "invalid_code"
	ResultAlreadyUsed  = "already_used"
	ResultInconsistent = "inconsistent"
	ResultInvalid      = "invalid_request"
	ResultError        = "error"
)

// Activation is the outcome of a successful activation.
type Activation struct {
	HardwareID  string    `json:"hardware_id"`
	Code        string    `json:"activation_code"`
	LicenseType string    `json:"license_type"`
	ExpiresAt   time.Time `json:"expiry_date"`
	ActivatedAt time.Time `json:"activated_at"`

	// Renewed is set when the hardware re-activated the code it was
	// already bound to.
	Renewed bool `json:"renewed,omitempty"`

	// PreviousCode is set when the hardware moved from another code. The
	// previous code stays consumed.
	PreviousCode string `json:"previous_code,omitempty"`
}

// HardwareStatus is the answer to a hardware check. ExpiresAt and
// LicenseType are set only while the license is active.
type HardwareStatus struct {
	Activated   bool       `json:"activated"`
	Expired     bool       `json:"expired,omitempty"`
	Found       bool       `json:"found"`
	ExpiresAt   *time.Time `json:"expiry_date,omitempty"`
	LicenseType string     `json:"license_type,omitempty"`
}

// Engine binds activation codes to hardware identifiers and answers
// whether a hardware identifier holds an active license.
type Engine struct {
	store *store.Store
	opts  options
}

// NewEngine returns an Engine over s.
func NewEngine(s *store.Store, opts ...Option) *Engine {
	return &Engine{store: s, opts: buildOptions(opts)}
}

// Activate consumes code for hardwareID and returns the granted terms.
//
// A code is single-use: once bound it can only be re-activated by the same
// hardware, which renews the expiry from now. A hardware id that already
// holds another code is moved to this one. The code lookup, binding write
// and usage flag update commit together.
func (e *Engine) Activate(ctx context.Context, code, hardwareID string) (*Activation, error) {
	in := activateInput{Code: NormalizeCode(code), HardwareID: strings.TrimSpace(hardwareID)}
	if err := check(in); err != nil {
		e.opts.recorder.Activation(ResultInvalid)
		return nil, err
	}

	var result *Activation
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		result, err = e.activate(ctx, tx, in.Code, in.HardwareID)
		return err
	})
	if err != nil {
		err = asStorage(err)
		e.opts.recorder.Activation(activationResult(err))
		return nil, err
	}

	switch {
	case result.PreviousCode != "":
		e.opts.recorder.Activation(ResultRebound)
		e.opts.logger.Info("hardware rebound to new activation code",
			"hardware_id", result.HardwareID, "code", result.Code,
			"previous_code", result.PreviousCode, "expiry_date", result.ExpiresAt)
	case result.Renewed:
		e.opts.recorder.Activation(ResultRenewed)
		e.opts.logger.Info("activation renewed",
			"hardware_id", result.HardwareID, "code", result.Code, "expiry_date", result.ExpiresAt)
	default:
		e.opts.recorder.Activation(ResultActivated)
		e.opts.logger.Info("activation code consumed",
			"hardware_id", result.HardwareID, "code", result.Code, "expiry_date", result.ExpiresAt)
	}
	return result, nil
}

func (e *Engine) activate(ctx context.Context, tx *store.Tx, code, hardwareID string) (*Activation, error) {
	c, err := tx.LockCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrInvalidCode, "Invalid activation code", nil)
	}
	if err != nil {
		return nil, err
	}

	owner, err := tx.BindingByCode(ctx, code)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	renewed := false
	switch {
	case c.IsUsed && owner == nil:
		// Left behind by a rebind; stays consumed until an admin deletes it.
		e.opts.logger.Debug("activation code abandoned by a rebind", "code", code, "hardware_id", hardwareID)
		return nil, newError(ErrCodeAlreadyUsed, "Activation code already used", nil)
	case c.IsUsed && owner.HardwareID != hardwareID:
		return nil, newError(ErrCodeAlreadyUsed, "Activation code already used", nil)
	case c.IsUsed:
		renewed = true
	case owner != nil:
		e.opts.logger.Warn("unused activation code has a binding",
			"code", code, "bound_hardware_id", owner.HardwareID, "hardware_id", hardwareID)
		return nil, newError(ErrInconsistentState, "Activation code is no longer valid", nil)
	}

	now := e.opts.clock()
	b := &model.Binding{
		HardwareID:  hardwareID,
		Code:        code,
		LicenseType: c.LicenseType,
		ExpiresAt:   now.AddDate(0, 0, c.DurationDays),
		ActivatedAt: now,
	}

	previous := ""
	existing, err := tx.BindingByHardware(ctx, hardwareID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// A concurrent first activation of this hardware id surfaces as
		// store.ErrConflict and the transaction is retried as an update.
		if err := tx.InsertBinding(ctx, b); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		b.ID = existing.ID
		if existing.Code != code {
			previous = existing.Code
		}
		if err := tx.UpdateBinding(ctx, b); err != nil {
			return nil, err
		}
	}

	if !c.IsUsed {
		if err := tx.SetCodeUsed(ctx, code, true); err != nil {
			return nil, err
		}
	}

	return &Activation{
		HardwareID:   hardwareID,
		Code:         code,
		LicenseType:  b.LicenseType,
		ExpiresAt:    b.ExpiresAt,
		ActivatedAt:  b.ActivatedAt,
		Renewed:      renewed,
		PreviousCode: previous,
	}, nil
}

// CheckHardware reports whether hardwareID holds an active license. An
// unknown or expired hardware id is not an error; the expired binding is
// kept. A license expiring exactly now is still active.
func (e *Engine) CheckHardware(ctx context.Context, hardwareID string) (*HardwareStatus, error) {
	in := hardwareInput{HardwareID: strings.TrimSpace(hardwareID)}
	if err := check(in); err != nil {
		return nil, err
	}

	b, err := e.store.BindingByHardware(ctx, in.HardwareID)
	if errors.Is(err, store.ErrNotFound) {
		e.opts.recorder.HardwareCheck(false)
		return &HardwareStatus{}, nil
	}
	if err != nil {
		return nil, asStorage(err)
	}

	if b.Expired(e.opts.clock()) {
		e.opts.recorder.HardwareCheck(false)
		return &HardwareStatus{Found: true, Expired: true}, nil
	}

	e.opts.recorder.HardwareCheck(true)
	exp := b.ExpiresAt
	return &HardwareStatus{
		Activated:   true,
		Found:       true,
		ExpiresAt:   &exp,
		LicenseType: b.LicenseType,
	}, nil
}

func activationResult(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCode):
		return ResultInvalidCode
	case errors.Is(err, ErrCodeAlreadyUsed):
		return ResultAlreadyUsed
	case errors.Is(err, ErrInconsistentState):
		return ResultInconsistent
	default:
		return ResultError
	}
}
