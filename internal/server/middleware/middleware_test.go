package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/faucetdb/licensed/internal/metrics"
	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/service"
	"github.com/faucetdb/licensed/internal/store"
	"github.com/faucetdb/licensed/internal/store/storetest"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func withPrincipal(req *http.Request, p *Principal) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), AuthPrincipalKey, p))
}

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	respID := rr.Header().Get("X-Request-ID")
	if len(respID) != 36 {
		t.Errorf("expected UUID-length request ID, got %q (len=%d)", respID, len(respID))
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetRequestID(r.Context()); id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if respID := rr.Header().Get("X-Request-ID"); respID != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, respID)
	}
}

func TestRequestIDReplacesOversizedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", maxRequestIDLength+1))
	rr := httptest.NewRecorder()
	RequestID(okHandler).ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("expected generated id, got %q", got)
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty string from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Authorization tests
// ---------------------------------------------------------------------------

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name      string
		principal *Principal
		want      int
	}{
		{"admin session", &Principal{Type: PrincipalAdmin, AdminID: 1, Scope: model.ScopeAdmin}, http.StatusOK},
		{"admin key", &Principal{Type: PrincipalAPIKey, KeyID: 1, Scope: model.ScopeAdmin}, http.StatusOK},
		{"read key", &Principal{Type: PrincipalAPIKey, KeyID: 2, Scope: model.ScopeRead}, http.StatusForbidden},
		{"unauthenticated", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/admin", nil)
			if tt.principal != nil {
				req = withPrincipal(req, tt.principal)
			}
			rr := httptest.NewRecorder()
			RequireAdmin()(okHandler).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRequireSessionRejectsAdminKey(t *testing.T) {
	req := withPrincipal(httptest.NewRequest("POST", "/system/admin", nil),
		&Principal{Type: PrincipalAPIKey, Scope: model.ScopeAdmin})
	rr := httptest.NewRecorder()
	RequireSession()(okHandler).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

func TestAuthenticate(t *testing.T) {
	s := storetest.New(t)
	auth := service.NewAuthService(s, "middleware-test-secret")
	ctx := context.Background()

	raw := "lic_middleware_read_key"
	s.CreateAPIKey(ctx, &model.APIKey{KeyHash: store.HashAPIKey(raw), KeyPrefix: raw[:12], Scope: model.ScopeRead, IsActive: true})
	token, _ := auth.IssueJWT(ctx, 9, "a@example.com", time.Hour)

	var seen *Principal
	h := Authenticate(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPrincipal(r.Context())
	}))

	t.Run("api key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-API-Key", raw)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK || seen == nil || seen.Type != PrincipalAPIKey || seen.Scope != model.ScopeRead {
			t.Errorf("status %d, principal %+v", rr.Code, seen)
		}
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK || seen == nil || seen.AdminID != 9 || !seen.CanWrite() {
			t.Errorf("status %d, principal %+v", rr.Code, seen)
		}
	})

	t.Run("bad key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-API-Key", "lic_nope")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
		var body model.ErrorResponse
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || body.Error.Code != 401 {
			t.Errorf("body = %+v, err %v", body, err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})
}

func TestGetPrincipalWithoutValue(t *testing.T) {
	if got := GetPrincipal(context.Background()); got != nil {
		t.Error("expected nil principal from bare context")
	}
}

// ---------------------------------------------------------------------------
// Rate limit, logging and metrics tests
// ---------------------------------------------------------------------------

func TestValidateRateLimit(t *testing.T) {
	h := ValidateRateLimit(2)(okHandler)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/validate", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last.Code)
	}
	var body model.ValidateResponse
	json.NewDecoder(last.Body).Decode(&body)
	if body.Status != model.StatusError || body.Message == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(0)(okHandler)
	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rr.Code)
		}
	}
}

func TestLoggerLevels(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(slog.NewJSONHandler(&sb, &slog.HandlerOptions{Level: slog.LevelInfo}))

	fail := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	Logger(logger)(fail).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/boom", nil))
	Logger(logger)(okHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	out := sb.String()
	if !strings.Contains(out, `"level":"ERROR"`) || !strings.Contains(out, `"path":"/boom"`) {
		t.Errorf("missing error record: %s", out)
	}
	if strings.Contains(out, "/healthz") {
		t.Errorf("probe should log at debug: %s", out)
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/codes/{codeId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/codes/"+id, nil))
	}

	body := httptest.NewRecorder()
	m.Handler().ServeHTTP(body, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(body.Body.String(), `licensed_http_requests_total{method="GET",route="/codes/{codeId}",status="204"} 3`) {
		t.Errorf("route-labelled counter missing:\n%s", body.Body.String())
	}
	if n, err := testutil.GatherAndCount(m.Registry(), "licensed_http_requests_total"); err != nil || n != 1 {
		t.Errorf("series = %d (err %v), want 1", n, err)
	}
}
