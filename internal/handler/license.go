package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/model"
)

// LicenseHandler serves the administrative license routes: code generation
// and listing, binding management and statistics.
type LicenseHandler struct {
	generator *license.Generator
	gateway   *license.Gateway
	engine    Activator
	logger    *slog.Logger
}

// NewLicenseHandler creates a LicenseHandler.
func NewLicenseHandler(gen *license.Generator, gw *license.Gateway, engine Activator, logger *slog.Logger) *LicenseHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LicenseHandler{generator: gen, gateway: gw, engine: engine, logger: logger}
}

// generateRequest uses pointers so an explicit zero is rejected rather than
// replaced by the default.
type generateRequest struct {
	LicenseType *string `json:"license_type"`
	Duration    *int    `json:"duration"`
	Count       *int    `json:"count"`
}

func (g generateRequest) resolve() license.GenerateRequest {
	req := license.GenerateRequest{
		LicenseType:  license.DefaultLicenseType,
		DurationDays: license.DefaultDurationDays,
		Count:        license.DefaultCount,
	}
	if g.LicenseType != nil {
		req.LicenseType = *g.LicenseType
	}
	if g.Duration != nil {
		req.DurationDays = *g.Duration
	}
	if g.Count != nil {
		req.Count = *g.Count
	}
	return req
}

// GenerateCodes mints a batch of activation codes.
// POST /api/v1/license/codes
func (h *LicenseHandler) GenerateCodes(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := readJSON(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, model.StatusResponse{
			Status:  model.StatusError,
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	req := body.resolve()
	codes, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		writeJSON(w, licenseStatus(err), model.StatusResponse{
			Status:  model.StatusError,
			Message: license.Message(err),
		})
		return
	}

	out := make([]string, len(codes))
	for i := range codes {
		out[i] = codes[i].Code
	}
	writeJSON(w, http.StatusCreated, model.GenerateResponse{
		Status:      model.StatusSuccess,
		Codes:       out,
		Count:       len(out),
		LicenseType: req.LicenseType,
		Duration:    req.DurationDays,
	})
}

// ListCodes returns a page of codes, newest first.
// GET /api/v1/license/codes?filter=all|used|unused&limit&offset
func (h *LicenseHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	filter, err := model.ParseCodeFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.gateway.ListCodes(r.Context(), filter, pageFromQuery(r))
	if err != nil {
		writeLicenseError(w, err)
		return
	}
	if list.Codes == nil {
		list.Codes = []model.ActivationCode{}
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: list.Codes,
		Meta:     listMeta(len(list.Codes), list.Total, list.Page),
	})
}

// DeleteCode removes an unused code. Used or bound codes answer 409.
// DELETE /api/v1/license/codes/{codeId}
func (h *LicenseHandler) DeleteCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "codeId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid code ID: "+chi.URLParam(r, "codeId"))
		return
	}

	deleted, err := h.gateway.DeleteCode(r.Context(), id)
	if err != nil {
		writeLicenseError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusConflict, "Code not found, already used, or still bound",
			map[string]interface{}{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Activation code deleted",
	})
}

// ListBindings returns a page of bindings, most recently activated first.
// GET /api/v1/license/bindings?limit&offset
func (h *LicenseHandler) ListBindings(w http.ResponseWriter, r *http.Request) {
	list, err := h.gateway.ListBindings(r.Context(), pageFromQuery(r))
	if err != nil {
		writeLicenseError(w, err)
		return
	}
	if list.Bindings == nil {
		list.Bindings = []model.BindingView{}
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: list.Bindings,
		Meta:     listMeta(len(list.Bindings), list.Total, list.Page),
	})
}

// DeleteBinding releases a binding and makes its code reusable.
// DELETE /api/v1/license/bindings/{bindingId}
func (h *LicenseHandler) DeleteBinding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "bindingId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid binding ID: "+chi.URLParam(r, "bindingId"))
		return
	}

	deleted, err := h.gateway.DeleteBinding(r.Context(), id)
	if err != nil {
		writeLicenseError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Binding not found", map[string]interface{}{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Binding deleted, code released",
	})
}

// hardwareResponse combines the stored binding with its current status.
type hardwareResponse struct {
	Binding *model.Binding          `json:"binding"`
	Status  *license.HardwareStatus `json:"status"`
}

// GetHardware returns the binding and license status of a hardware id.
// GET /api/v1/license/hardware/{hardwareId}
func (h *LicenseHandler) GetHardware(w http.ResponseWriter, r *http.Request) {
	hw := chi.URLParam(r, "hardwareId")

	b, err := h.gateway.BindingForHardware(r.Context(), hw)
	if err != nil {
		writeLicenseError(w, err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "No activation record found",
			map[string]interface{}{"hardware_id": hw})
		return
	}
	st, err := h.engine.CheckHardware(r.Context(), hw)
	if err != nil {
		writeLicenseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hardwareResponse{Binding: b, Status: st})
}

// DeleteHardware releases whatever binding a hardware id holds.
// DELETE /api/v1/license/hardware/{hardwareId}
func (h *LicenseHandler) DeleteHardware(w http.ResponseWriter, r *http.Request) {
	hw := chi.URLParam(r, "hardwareId")

	deleted, err := h.gateway.DeleteHardware(r.Context(), hw)
	if err != nil {
		writeLicenseError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "No activation record found",
			map[string]interface{}{"hardware_id": hw})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Binding deleted, code released",
	})
}

// Stats returns aggregate code and binding counts.
// GET /api/v1/license/stats
func (h *LicenseHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.gateway.Stats(r.Context())
	if err != nil {
		writeLicenseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
