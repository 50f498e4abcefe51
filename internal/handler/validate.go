package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/model"
)

// Validation endpoint actions.
const (
	ActionActivate      = "activate"
	ActionCheckHardware = "check_hardware"
	ActionCheckUpdate   = "check"
)

// Activator is the part of the license engine the validation endpoint
// drives.
type Activator interface {
	Activate(ctx context.Context, code, hardwareID string) (*license.Activation, error)
	CheckHardware(ctx context.Context, hardwareID string) (*license.HardwareStatus, error)
}

// ValidateHandler serves the endpoint desktop clients call to activate a
// code and to check whether their hardware is licensed.
type ValidateHandler struct {
	engine Activator
	logger *slog.Logger
}

// NewValidateHandler creates a ValidateHandler.
func NewValidateHandler(engine Activator, logger *slog.Logger) *ValidateHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ValidateHandler{engine: engine, logger: logger}
}

// Validate dispatches on the request action. Outcomes, failures included,
// are answered with HTTP 200 and a status field; only a body that is
// unreadable, null or an empty object gets 400.
// POST /validate
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var body *model.ValidateRequest
	if err := readJSON(w, r, &body); err != nil || body == nil || *body == (model.ValidateRequest{}) {
		writeJSON(w, http.StatusBadRequest, model.ValidateResponse{
			Status:  model.StatusError,
			Message: "Invalid request data",
		})
		return
	}
	req := *body

	var resp model.ValidateResponse
	switch req.Action {
	case ActionActivate:
		resp = h.activate(r.Context(), req)
	case ActionCheckHardware:
		resp = h.checkHardware(r.Context(), req)
	case ActionCheckUpdate:
		resp = model.ValidateResponse{
			Status:          model.StatusSuccess,
			Message:         "Already up to date",
			UpdateAvailable: boolPtr(false),
		}
	default:
		resp = model.ValidateResponse{Status: model.StatusError, Message: "unknown action"}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ValidateHandler) activate(ctx context.Context, req model.ValidateRequest) model.ValidateResponse {
	act, err := h.engine.Activate(ctx, req.ActivationCode, req.HardwareID)
	if err != nil {
		h.logFailure(ctx, "activation failed", err)
		return model.ValidateResponse{Status: model.StatusError, Message: license.Message(err)}
	}
	return model.ValidateResponse{
		Status:      model.StatusSuccess,
		Message:     "Activation successful",
		ExpiryDate:  model.FormatExpiry(act.ExpiresAt),
		LicenseType: act.LicenseType,
	}
}

func (h *ValidateHandler) checkHardware(ctx context.Context, req model.ValidateRequest) model.ValidateResponse {
	st, err := h.engine.CheckHardware(ctx, req.HardwareID)
	if err != nil {
		h.logFailure(ctx, "hardware check failed", err)
		return model.ValidateResponse{Status: model.StatusError, Message: license.Message(err)}
	}

	resp := model.ValidateResponse{Status: model.StatusSuccess, Activated: boolPtr(st.Activated)}
	switch {
	case st.Activated:
		resp.Message = "License valid"
		resp.ExpiryDate = model.FormatExpiry(*st.ExpiresAt)
		resp.LicenseType = st.LicenseType
	case st.Expired:
		resp.Message = "License expired"
	default:
		resp.Message = "No activation record found"
	}
	return resp
}

// logFailure logs storage failures at error; client mistakes only at debug.
func (h *ValidateHandler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelDebug
	if errors.Is(err, license.ErrStorage) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg, "error", err)
}

func boolPtr(b bool) *bool { return &b }
