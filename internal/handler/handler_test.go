package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/service"
	"github.com/faucetdb/licensed/internal/store"
	"github.com/faucetdb/licensed/internal/store/storetest"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store   *store.Store
	authSvc *service.AuthService
	now     time.Time
	gen     *license.Generator
	engine  *license.Engine
	router  chi.Router
}

// newTestEnv wires every handler over an in-memory store and mounts the
// routes without auth middleware.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s := storetest.New(t)
	env := &testEnv{
		store:   s,
		authSvc: service.NewAuthService(s, testJWTSecret),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := license.WithClock(func() time.Time { return env.now })

	env.gen = license.NewGenerator(s, clock)
	env.engine = license.NewEngine(s, clock)
	gw := license.NewGateway(s, clock)

	validate := NewValidateHandler(env.engine, nil)
	lic := NewLicenseHandler(env.gen, gw, env.engine, nil)
	sys := NewSystemHandler(s, env.authSvc, time.Hour)

	r := chi.NewRouter()
	r.Post("/validate", validate.Validate)
	r.Get("/openapi.json", NewOpenAPIHandler("test").ServeSpec)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/license", func(r chi.Router) {
			r.Get("/codes", lic.ListCodes)
			r.Post("/codes", lic.GenerateCodes)
			r.Delete("/codes/{codeId}", lic.DeleteCode)
			r.Get("/bindings", lic.ListBindings)
			r.Delete("/bindings/{bindingId}", lic.DeleteBinding)
			r.Get("/hardware/{hardwareId}", lic.GetHardware)
			r.Delete("/hardware/{hardwareId}", lic.DeleteHardware)
			r.Get("/stats", lic.Stats)
		})
		r.Route("/system", func(r chi.Router) {
			r.Post("/admin/session", sys.Login)
			r.Delete("/admin/session", sys.Logout)
			r.Get("/admin", sys.ListAdmins)
			r.Post("/admin", sys.CreateAdmin)
			r.Get("/api-key", sys.ListAPIKeys)
			r.Post("/api-key", sys.CreateAPIKey)
			r.Delete("/api-key/{keyId}", sys.RevokeAPIKey)
		})
	})
	env.router = r
	return env
}

// seedAdmin creates a default admin account and returns it.
func (e *testEnv) seedAdmin(t *testing.T, active bool) *model.Admin {
	t.Helper()
	hash, err := service.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	admin := &model.Admin{
		Email:        "admin@example.com",
		PasswordHash: hash,
		Name:         "Test Admin",
		IsActive:     active,
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// seedCodes generates n codes lasting days.
func (e *testEnv) seedCodes(t *testing.T, n, days int) []model.ActivationCode {
	t.Helper()
	codes, err := e.gen.Generate(context.Background(), license.GenerateRequest{
		LicenseType: "standard", DurationDays: days, Count: n,
	})
	if err != nil {
		t.Fatalf("seedCodes: %v", err)
	}
	return codes
}

// activate binds code to hw through the engine.
func (e *testEnv) activate(t *testing.T, code, hw string) {
	t.Helper()
	if _, err := e.engine.Activate(context.Background(), code, hw); err != nil {
		t.Fatalf("Activate(%s, %s): %v", code, hw, err)
	}
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return &buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body: %s", err, rr.Body.String())
	}
}

func TestOpenAPISpecUsesRequestHost(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/openapi.json", nil)
	assertStatus(t, rr, 200)

	var doc struct {
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	decodeJSON(t, rr, &doc)
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://example.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}
	if doc.Info.Version != "test" {
		t.Errorf("version = %q, want test", doc.Info.Version)
	}
}

func TestErrorResponseFormat(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "DELETE", "/api/v1/license/codes/abc", nil)
	assertStatus(t, rr, 400)

	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error.Code != 400 {
		t.Errorf("error.code = %d, want 400", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "abc") {
		t.Errorf("error.message = %q", resp.Error.Message)
	}
}
