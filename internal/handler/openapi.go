package handler

import (
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/licensed/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI document of the server's HTTP API.
type OpenAPIHandler struct {
	version string

	mu   sync.Mutex
	docs map[string]*openapi3.T
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(version string) *OpenAPIHandler {
	return &OpenAPIHandler{version: version, docs: make(map[string]*openapi3.T)}
}

// ServeSpec returns the document with the server URL taken from the request.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.doc(baseURL(r)))
}

// doc caches one document per base URL.
func (h *OpenAPIHandler) doc(base string) *openapi3.T {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.docs[base]; ok {
		return d
	}
	d := openapi.Generate(base, h.version)
	if len(h.docs) < 16 {
		h.docs[base] = d
	}
	return d
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
