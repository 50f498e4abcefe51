package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/model"
)

// maxBodySize bounds every JSON request body.
const maxBodySize = 1 << 20

// writeJSON serializes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard admin error envelope. The optional ctx map
// adds context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// writeLicenseError maps a license error onto an HTTP status and writes the
// admin error envelope. Storage causes are never echoed to clients.
func writeLicenseError(w http.ResponseWriter, err error) {
	writeError(w, licenseStatus(err), license.Message(err))
}

func licenseStatus(err error) int {
	switch {
	case errors.Is(err, license.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, license.ErrInvalidCode):
		return http.StatusNotFound
	case errors.Is(err, license.ErrCodeAlreadyUsed), errors.Is(err, license.ErrInconsistentState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// readJSON decodes a bounded request body into v.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// pageFromQuery reads limit and offset, clamped to the allowed window.
func pageFromQuery(r *http.Request) model.Page {
	return model.Page{
		Limit:  clampInt(queryInt(r, "limit", model.DefaultPageLimit), 1, model.MaxPageLimit),
		Offset: max(queryInt(r, "offset", 0), 0),
	}
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// clampInt constrains val to be within [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func listMeta(count int, total int64, page model.Page) *model.ResponseMeta {
	return &model.ResponseMeta{
		Count:  count,
		Total:  &total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
}
