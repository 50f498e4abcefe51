package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/store/storetest"
)

type testEnv struct {
	srv    *MCPServer
	gen    *license.Generator
	engine *license.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := storetest.New(t)
	clock := license.WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	gen := license.NewGenerator(s, clock)
	engine := license.NewEngine(s, clock)
	return &testEnv{
		srv:    NewMCPServer(gen, license.NewGateway(s, clock), engine, "test", nil),
		gen:    gen,
		engine: engine,
	}
}

func (e *testEnv) seed(t *testing.T, n int) []model.ActivationCode {
	t.Helper()
	codes, err := e.gen.Generate(context.Background(), license.GenerateRequest{
		LicenseType: "pro", DurationDays: 30, Count: n,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return codes
}

func (e *testEnv) bind(t *testing.T, code, hw string) {
	t.Helper()
	if _, err := e.engine.Activate(context.Background(), code, hw); err != nil {
		t.Fatalf("Activate: %v", err)
	}
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("content type = %T, want text", res.Content[0])
		return ""
	}
}

// decodeResult fails the test on a tool error and decodes the JSON payload.
func decodeResult(t *testing.T, res *mcp.CallToolResult, err error, v interface{}) {
	t.Helper()
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	text := resultText(t, res)
	if res.IsError {
		t.Fatalf("tool error: %s", text)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("decode %s: %v", text, err)
	}
}

func wantToolError(t *testing.T, res *mcp.CallToolResult, err error, substr string) {
	t.Helper()
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error, got %s", resultText(t, res))
	}
	if text := resultText(t, res); !strings.Contains(text, substr) {
		t.Errorf("error = %q, want it to contain %q", text, substr)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		val      int
		min      int
		max      int
		expected int
	}{
		{"value in range", 5, 1, 10, 5},
		{"value below min", -3, 1, 10, 1},
		{"value above max", 15, 1, 10, 10},
		{"value equals min", 1, 1, 10, 1},
		{"value equals max", 10, 1, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clamp(tt.val, tt.min, tt.max)
			if got != tt.expected {
				t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.val, tt.min, tt.max, got, tt.expected)
			}
		})
	}
}

func TestAnnotations(t *testing.T) {
	if ann := readOnlyAnnotation(); ann.ReadOnlyHint == nil || !*ann.ReadOnlyHint {
		t.Error("readOnlyAnnotation should set ReadOnlyHint")
	}
	if ann := mutatingAnnotation(); *ann.ReadOnlyHint || *ann.DestructiveHint {
		t.Error("mutatingAnnotation should be neither read-only nor destructive")
	}
	if ann := destructiveAnnotation(); ann.DestructiveHint == nil || !*ann.DestructiveHint {
		t.Error("destructiveAnnotation should set DestructiveHint")
	}
}

func TestPageArgs(t *testing.T) {
	p := pageArgs(callRequest(nil))
	if p.Limit != defaultToolLimit || p.Offset != 0 {
		t.Errorf("default page = %+v", p)
	}
	p = pageArgs(callRequest(map[string]interface{}{"limit": float64(5000), "offset": float64(-2)}))
	if p.Limit != model.MaxPageLimit || p.Offset != 0 {
		t.Errorf("clamped page = %+v", p)
	}
}

func TestGenerateCodesTool(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.srv.handleGenerateCodes(context.Background(), callRequest(map[string]interface{}{
		"license_type": "pro", "duration": float64(90), "count": float64(3),
	}))
	var resp model.GenerateResponse
	decodeResult(t, res, err, &resp)
	if resp.Count != 3 || resp.LicenseType != "pro" || resp.Duration != 90 {
		t.Errorf("resp = %+v", resp)
	}
	for _, c := range resp.Codes {
		if !license.ValidCodeFormat(c) {
			t.Errorf("code %q has the wrong shape", c)
		}
	}

	res, err = env.srv.handleGenerateCodes(context.Background(), callRequest(nil))
	decodeResult(t, res, err, &resp)
	if resp.Count != license.DefaultCount || resp.Duration != license.DefaultDurationDays {
		t.Errorf("defaults = %+v", resp)
	}
}

func TestGenerateCodesToolValidation(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.srv.handleGenerateCodes(context.Background(), callRequest(map[string]interface{}{
		"count": float64(500),
	}))
	wantToolError(t, res, err, "count must be at most 100")
}

func TestListCodesTool(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seed(t, 3)
	env.bind(t, codes[0].Code, "HW-1")

	var resp struct {
		Codes  []model.ActivationCode `json:"codes"`
		Total  int64                  `json:"total"`
		Filter string                 `json:"filter"`
	}
	res, err := env.srv.handleListCodes(context.Background(), callRequest(map[string]interface{}{"filter": "unused"}))
	decodeResult(t, res, err, &resp)
	if resp.Total != 2 || len(resp.Codes) != 2 || resp.Filter != "unused" {
		t.Errorf("resp = %+v", resp)
	}

	res, err = env.srv.handleListCodes(context.Background(), callRequest(map[string]interface{}{"filter": "expired"}))
	wantToolError(t, res, err, "unknown code filter")
}

func TestDeleteCodeTool(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seed(t, 2)
	env.bind(t, codes[0].Code, "HW-1")

	res, err := env.srv.handleDeleteCode(context.Background(), callRequest(map[string]interface{}{"id": float64(codes[0].ID)}))
	wantToolError(t, res, err, "already used")

	var resp map[string]interface{}
	res, err = env.srv.handleDeleteCode(context.Background(), callRequest(map[string]interface{}{"id": float64(codes[1].ID)}))
	decodeResult(t, res, err, &resp)
	if resp["deleted"] != true {
		t.Errorf("resp = %v", resp)
	}

	res, err = env.srv.handleDeleteCode(context.Background(), callRequest(nil))
	wantToolError(t, res, err, "positive integer")
}

func TestBindingTools(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seed(t, 2)
	env.bind(t, codes[0].Code, "HW-1")
	env.bind(t, codes[1].Code, "HW-2")

	var list struct {
		Bindings []model.BindingView `json:"bindings"`
		Total    int64               `json:"total"`
	}
	res, err := env.srv.handleListBindings(context.Background(), callRequest(nil))
	decodeResult(t, res, err, &list)
	if list.Total != 2 || len(list.Bindings) != 2 {
		t.Fatalf("list = %+v", list)
	}

	var resp map[string]interface{}
	res, err = env.srv.handleDeleteBinding(context.Background(), callRequest(map[string]interface{}{"hardware_id": "HW-1"}))
	decodeResult(t, res, err, &resp)

	var id int64
	for _, b := range list.Bindings {
		if b.HardwareID == "HW-2" {
			id = b.ID
		}
	}
	res, err = env.srv.handleDeleteBinding(context.Background(), callRequest(map[string]interface{}{"id": float64(id)}))
	decodeResult(t, res, err, &resp)

	res, err = env.srv.handleDeleteBinding(context.Background(), callRequest(map[string]interface{}{"hardware_id": "HW-1"}))
	wantToolError(t, res, err, "Binding not found")

	res, err = env.srv.handleDeleteBinding(context.Background(), callRequest(nil))
	wantToolError(t, res, err, "required")

	res, err = env.srv.handleDeleteBinding(context.Background(), callRequest(map[string]interface{}{"id": float64(1), "hardware_id": "HW-1"}))
	wantToolError(t, res, err, "not both")
}

func TestCheckHardwareTool(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seed(t, 1)
	env.bind(t, codes[0].Code, "HW-1")

	var st license.HardwareStatus
	res, err := env.srv.handleCheckHardware(context.Background(), callRequest(map[string]interface{}{"hardware_id": "HW-1"}))
	decodeResult(t, res, err, &st)
	if !st.Activated || st.LicenseType != "pro" {
		t.Errorf("status = %+v", st)
	}

	res, err = env.srv.handleCheckHardware(context.Background(), callRequest(map[string]interface{}{"hardware_id": "HW-9"}))
	decodeResult(t, res, err, &st)
	if st.Activated || st.Found {
		t.Errorf("unknown hardware status = %+v", st)
	}

	res, err = env.srv.handleCheckHardware(context.Background(), callRequest(nil))
	wantToolError(t, res, err, "hardware_id")
}

func TestStatsTool(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seed(t, 3)
	env.bind(t, codes[0].Code, "HW-1")

	var st model.CodeStats
	res, err := env.srv.handleStats(context.Background(), callRequest(nil))
	decodeResult(t, res, err, &st)
	want := model.CodeStats{TotalCodes: 3, UsedCodes: 1, UnusedCodes: 2, Bindings: 1, ActiveBindings: 1}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
}

func TestHardwareResource(t *testing.T) {
	env := newTestEnv(t)
	codes := env.seed(t, 1)
	env.bind(t, codes[0].Code, "HW-1")

	var req mcp.ReadResourceRequest
	req.Params.URI = hardwareURIPrefix + "HW-1"
	contents, err := env.srv.handleHardwareResource(context.Background(), req)
	if err != nil {
		t.Fatalf("handleHardwareResource: %v", err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents type = %T", contents[0])
	}
	if !strings.Contains(text.Text, `"activated": true`) {
		t.Errorf("text = %s", text.Text)
	}

	req.Params.URI = "licensed://other"
	if _, err := env.srv.handleHardwareResource(context.Background(), req); err == nil {
		t.Error("expected error for malformed URI")
	}
}

func TestToolsListed(t *testing.T) {
	env := newTestEnv(t)
	msg := env.srv.Server().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, name := range []string{
		"license_generate_codes", "license_list_codes", "license_list_bindings",
		"license_delete_code", "license_delete_binding", "license_check_hardware",
		"license_stats",
	} {
		if !strings.Contains(string(b), `"`+name+`"`) {
			t.Errorf("tools/list missing %s", name)
		}
	}
}
