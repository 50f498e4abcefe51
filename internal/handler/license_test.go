package handler

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/model"
)

func TestGenerateCodesDefaults(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/license/codes", strings.NewReader(`{}`))
	assertStatus(t, rr, 201)

	var resp model.GenerateResponse
	decodeJSON(t, rr, &resp)
	if resp.Status != model.StatusSuccess || resp.Count != 1 || len(resp.Codes) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.LicenseType != license.DefaultLicenseType || resp.Duration != license.DefaultDurationDays {
		t.Errorf("defaults = %q/%d", resp.LicenseType, resp.Duration)
	}
	if !license.ValidCodeFormat(resp.Codes[0]) {
		t.Errorf("code %q has the wrong shape", resp.Codes[0])
	}
}

func TestGenerateCodesBatch(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/license/codes",
		toJSON(t, map[string]interface{}{"license_type": "pro", "duration": 30, "count": 5}))
	assertStatus(t, rr, 201)

	var resp model.GenerateResponse
	decodeJSON(t, rr, &resp)
	if resp.Count != 5 || resp.LicenseType != "pro" || resp.Duration != 30 {
		t.Errorf("resp = %+v", resp)
	}

	n, _ := env.store.CountCodes(context.Background(), model.CodeFilterAll)
	if n != 5 {
		t.Errorf("stored codes = %d, want 5", n)
	}
}

func TestGenerateCodesValidation(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"count":0}`, "count must be at least 1"},
		{`{"count":101}`, "count must be at most 100"},
		{`{"duration":0}`, "duration must be at least 1"},
		{`{"duration":3651}`, "duration must be at most 3650"},
		{`{"license_type":""}`, "license_type is required"},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			env := newTestEnv(t)
			rr := env.do(t, "POST", "/api/v1/license/codes", strings.NewReader(tt.body))
			assertStatus(t, rr, 400)

			var resp model.StatusResponse
			decodeJSON(t, rr, &resp)
			if resp.Status != model.StatusError || resp.Message != tt.want {
				t.Errorf("resp = %+v, want message %q", resp, tt.want)
			}
			n, _ := env.store.CountCodes(context.Background(), model.CodeFilterAll)
			if n != 0 {
				t.Errorf("stored codes = %d, want 0", n)
			}
		})
	}
}

func TestListCodes(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seedCodes(t, 3, 30)
	env.activate(t, codes[0].Code, "HW-1")

	tests := []struct {
		query string
		count int
		total int64
	}{
		{"", 3, 3},
		{"?filter=used", 1, 1},
		{"?filter=unused", 2, 2},
		{"?limit=2", 2, 3},
		{"?limit=2&offset=2", 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := env.do(t, "GET", "/api/v1/license/codes"+tt.query, nil)
			assertStatus(t, rr, 200)

			var resp struct {
				Resource []model.ActivationCode `json:"resource"`
				Meta     model.ResponseMeta     `json:"meta"`
			}
			decodeJSON(t, rr, &resp)
			if len(resp.Resource) != tt.count || resp.Meta.Count != tt.count {
				t.Errorf("count = %d/%d, want %d", len(resp.Resource), resp.Meta.Count, tt.count)
			}
			if resp.Meta.Total == nil || *resp.Meta.Total != tt.total {
				t.Errorf("total = %v, want %d", resp.Meta.Total, tt.total)
			}
		})
	}

	rr := env.do(t, "GET", "/api/v1/license/codes?filter=sideways", nil)
	assertStatus(t, rr, 400)
}

func TestListCodesEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/v1/license/codes", nil)
	assertStatus(t, rr, 200)
	if !strings.Contains(rr.Body.String(), `"resource":[]`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestDeleteCode(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seedCodes(t, 2, 30)
	env.activate(t, codes[0].Code, "HW-1")

	rr := env.do(t, "DELETE", fmt.Sprintf("/api/v1/license/codes/%d", codes[0].ID), nil)
	assertStatus(t, rr, 409)

	rr = env.do(t, "DELETE", fmt.Sprintf("/api/v1/license/codes/%d", codes[1].ID), nil)
	assertStatus(t, rr, 200)

	if _, err := env.store.GetCodeByID(context.Background(), codes[0].ID); err != nil {
		t.Errorf("used code should survive: %v", err)
	}
	if _, err := env.store.GetCodeByID(context.Background(), codes[1].ID); err == nil {
		t.Error("unused code should be gone")
	}

	rr = env.do(t, "DELETE", "/api/v1/license/codes/0", nil)
	assertStatus(t, rr, 400)
}

func TestBindingsListAndRelease(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seedCodes(t, 1, 30)
	env.activate(t, codes[0].Code, "HW-1")

	rr := env.do(t, "GET", "/api/v1/license/bindings", nil)
	assertStatus(t, rr, 200)
	var list struct {
		Resource []model.BindingView `json:"resource"`
	}
	decodeJSON(t, rr, &list)
	if len(list.Resource) != 1 {
		t.Fatalf("bindings = %d, want 1", len(list.Resource))
	}
	b := list.Resource[0]
	if b.HardwareID != "HW-1" || b.Code != codes[0].Code || b.DurationDays != 30 {
		t.Errorf("binding = %+v", b)
	}

	rr = env.do(t, "DELETE", fmt.Sprintf("/api/v1/license/bindings/%d", b.ID), nil)
	assertStatus(t, rr, 200)
	rr = env.do(t, "DELETE", fmt.Sprintf("/api/v1/license/bindings/%d", b.ID), nil)
	assertStatus(t, rr, 404)

	// The released code is now available to other hardware.
	resp := postValidate(t, env, model.ValidateRequest{Action: "activate", ActivationCode: codes[0].Code, HardwareID: "HW-2"})
	if resp.Status != model.StatusSuccess {
		t.Errorf("reactivation = %+v", resp)
	}
}

func TestHardwareRoutes(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seedCodes(t, 1, 30)
	env.activate(t, codes[0].Code, "HW-1")

	rr := env.do(t, "GET", "/api/v1/license/hardware/HW-1", nil)
	assertStatus(t, rr, 200)
	var resp struct {
		Binding model.Binding          `json:"binding"`
		Status  license.HardwareStatus `json:"status"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Binding.Code != codes[0].Code || !resp.Status.Activated {
		t.Errorf("resp = %+v", resp)
	}

	assertStatus(t, env.do(t, "GET", "/api/v1/license/hardware/HW-2", nil), 404)
	assertStatus(t, env.do(t, "DELETE", "/api/v1/license/hardware/HW-1", nil), 200)
	assertStatus(t, env.do(t, "DELETE", "/api/v1/license/hardware/HW-1", nil), 404)

	c, _ := env.store.GetCode(context.Background(), codes[0].Code)
	if c.IsUsed {
		t.Error("code should be released after hardware delete")
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seedCodes(t, 4, 30)
	env.activate(t, codes[0].Code, "HW-1")
	env.activate(t, codes[1].Code, "HW-2")

	rr := env.do(t, "GET", "/api/v1/license/stats", nil)
	assertStatus(t, rr, 200)
	var st model.CodeStats
	decodeJSON(t, rr, &st)
	want := model.CodeStats{TotalCodes: 4, UsedCodes: 2, UnusedCodes: 2, Bindings: 2, ActiveBindings: 2}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
}
