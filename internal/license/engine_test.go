package license

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/store"
	"github.com/faucetdb/licensed/internal/store/storetest"
)

type countingRecorder struct {
	mu          sync.Mutex
	activations map[string]int
	checks      map[bool]int
	generated   int
}

func (r *countingRecorder) Activation(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activations == nil {
		r.activations = make(map[string]int)
	}
	r.activations[result]++
}

func (r *countingRecorder) HardwareCheck(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.checks == nil {
		r.checks = make(map[bool]int)
	}
	r.checks[active]++
}

func (r *countingRecorder) CodesGenerated(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generated += n
}

// fakeClock is a settable clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store *store.Store
	clock *fakeClock
	gen   *Generator
	eng   *Engine
	gw    *Gateway
	rec   *countingRecorder
}

var start = time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storetest.New(t)
	clock := &fakeClock{now: start}
	rec := &countingRecorder{}
	opts := []Option{WithClock(clock.Now), WithRecorder(rec)}
	return &fixture{
		store: s,
		clock: clock,
		gen:   NewGenerator(s, opts...),
		eng:   NewEngine(s, opts...),
		gw:    NewGateway(s, opts...),
		rec:   rec,
	}
}

func (f *fixture) codes(t *testing.T, n, days int) []model.ActivationCode {
	t.Helper()
	codes, err := f.gen.Generate(context.Background(), GenerateRequest{LicenseType: "standard", DurationDays: days, Count: n})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return codes
}

func TestActivateFirstUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.codes(t, 1, 30)[0]

	act, err := f.eng.Activate(ctx, c.Code, "HW-1")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if act.LicenseType != "standard" {
		t.Errorf("LicenseType = %q", act.LicenseType)
	}
	if want := start.AddDate(0, 0, 30); !act.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", act.ExpiresAt, want)
	}
	if act.Renewed || act.PreviousCode != "" {
		t.Errorf("first activation flagged as renewal/rebind: %+v", act)
	}

	stored, _ := f.store.GetCode(ctx, c.Code)
	if !stored.IsUsed {
		t.Error("code should be marked used")
	}
	b, err := f.store.BindingByHardware(ctx, "HW-1")
	if err != nil {
		t.Fatalf("BindingByHardware: %v", err)
	}
	if b.Code != c.Code || !b.ExpiresAt.Equal(act.ExpiresAt) {
		t.Errorf("binding = %+v", b)
	}
	if f.rec.activations[ResultActivated] != 1 {
		t.Errorf("recorded activations = %v", f.rec.activations)
	}
}

func TestActivateNormalizesInput(t *testing.T) {
	f := newFixture(t)
	c := f.codes(t, 1, 30)[0]

	act, err := f.eng.Activate(context.Background(), strings.ToLower("  "+c.Code+" "), "  HW-1 ")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if act.Code != c.Code || act.HardwareID != "HW-1" {
		t.Errorf("Activate normalized to %q/%q", act.Code, act.HardwareID)
	}
}

func TestActivateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	long := strings.Repeat("h", MaxFieldLength+1)

	tests := []struct {
		name, code, hw string
	}{
		{"missing code", "", "HW-1"},
		{"missing hardware", "AAAAA-AAAAA-AAAAA-AAAAA-AAAAA", "   "},
		{"hardware too long", "AAAAA-AAAAA-AAAAA-AAAAA-AAAAA", long},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.eng.Activate(ctx, tt.code, tt.hw); !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestActivateUnknownCode(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Activate(context.Background(), "ZZZZZ-ZZZZZ-ZZZZZ-ZZZZZ-ZZZZZ", "HW-1")
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("error = %v, want ErrInvalidCode", err)
	}
	if Message(err) != "Invalid activation code" {
		t.Errorf("message = %q", Message(err))
	}
}

func TestActivateCodeUsedByOtherHardware(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.codes(t, 1, 30)[0]

	if _, err := f.eng.Activate(ctx, c.Code, "H1"); err != nil {
		t.Fatalf("Activate(H1): %v", err)
	}
	_, err := f.eng.Activate(ctx, c.Code, "H2")
	if !errors.Is(err, ErrCodeAlreadyUsed) {
		t.Fatalf("Activate(H2) error = %v, want ErrCodeAlreadyUsed", err)
	}
	if _, err := f.store.BindingByHardware(ctx, "H2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("H2 must not be bound, got err %v", err)
	}
}

func TestActivateIdempotentRenewal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.codes(t, 1, 30)[0]

	first, err := f.eng.Activate(ctx, c.Code, "H1")
	if err != nil {
		t.Fatalf("first Activate: %v", err)
	}

	later := start.Add(10 * 24 * time.Hour)
	f.clock.Set(later)
	second, err := f.eng.Activate(ctx, c.Code, "H1")
	if err != nil {
		t.Fatalf("second Activate: %v", err)
	}
	if !second.Renewed {
		t.Error("second activation should be a renewal")
	}
	if want := later.AddDate(0, 0, 30); !second.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v (recomputed)", second.ExpiresAt, want)
	}
	if !second.ActivatedAt.After(first.ActivatedAt) {
		t.Errorf("ActivatedAt not refreshed: %v -> %v", first.ActivatedAt, second.ActivatedAt)
	}

	views, _ := f.store.ListBindings(ctx, model.Page{})
	if len(views) != 1 {
		t.Errorf("got %d bindings, want 1", len(views))
	}
}

func TestActivateRebindKeepsOldCodeConsumed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	codes := f.codes(t, 2, 30)

	if _, err := f.eng.Activate(ctx, codes[0].Code, "H1"); err != nil {
		t.Fatalf("Activate(code0): %v", err)
	}
	act, err := f.eng.Activate(ctx, codes[1].Code, "H1")
	if err != nil {
		t.Fatalf("Activate(code1): %v", err)
	}
	if act.PreviousCode != codes[0].Code {
		t.Errorf("PreviousCode = %q, want %q", act.PreviousCode, codes[0].Code)
	}

	b, _ := f.store.BindingByHardware(ctx, "H1")
	if b.Code != codes[1].Code {
		t.Errorf("binding code = %q, want %q", b.Code, codes[1].Code)
	}
	old, _ := f.store.GetCode(ctx, codes[0].Code)
	if !old.IsUsed {
		t.Error("previous code should stay consumed")
	}

	// The abandoned code is used but unbound; it is not handed out again.
	_, err = f.eng.Activate(ctx, codes[0].Code, "H2")
	if !errors.Is(err, ErrCodeAlreadyUsed) {
		t.Errorf("Activate(abandoned) error = %v, want ErrCodeAlreadyUsed", err)
	}
	if _, err := f.store.BindingByHardware(ctx, "H2"); !errors.Is(err, store.ErrNotFound) {
		t.Error("abandoned code should not bind H2")
	}
	if f.rec.activations[ResultRebound] != 1 || f.rec.activations[ResultAlreadyUsed] != 1 ||
		f.rec.activations[ResultInconsistent] != 0 {
		t.Errorf("recorded activations = %v", f.rec.activations)
	}
}

func TestActivateUsedCodeWithoutBinding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.codes(t, 1, 30)[0]
	if err := f.store.SetCodeUsed(ctx, c.Code, true); err != nil {
		t.Fatalf("SetCodeUsed: %v", err)
	}

	_, err := f.eng.Activate(ctx, c.Code, "H1")
	if !errors.Is(err, ErrCodeAlreadyUsed) {
		t.Fatalf("error = %v, want ErrCodeAlreadyUsed", err)
	}
	if _, err := f.store.BindingByHardware(ctx, "H1"); !errors.Is(err, store.ErrNotFound) {
		t.Error("no binding should be created")
	}
}

func TestActivateUnusedCodeWithBinding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.codes(t, 1, 30)[0]
	if _, err := f.eng.Activate(ctx, c.Code, "H1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := f.store.SetCodeUsed(ctx, c.Code, false); err != nil {
		t.Fatalf("SetCodeUsed: %v", err)
	}

	_, err := f.eng.Activate(ctx, c.Code, "H2")
	if !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("error = %v, want ErrInconsistentState", err)
	}
	if _, err := f.store.BindingByHardware(ctx, "H2"); !errors.Is(err, store.ErrNotFound) {
		t.Error("H2 should not be bound")
	}
	if f.rec.activations[ResultInconsistent] != 1 {
		t.Errorf("recorded activations = %v", f.rec.activations)
	}
}

func TestExpiryExact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, days := range []int{1, 30, 365, 3650} {
		c, err := f.gen.Generate(ctx, GenerateRequest{LicenseType: "pro", DurationDays: days, Count: 1})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		hw := fmt.Sprintf("HW-%d", days)
		act, err := f.eng.Activate(ctx, c[0].Code, hw)
		if err != nil {
			t.Fatalf("Activate: %v", err)
		}
		if want := start.Add(time.Duration(days) * 24 * time.Hour); !act.ExpiresAt.Equal(want) {
			t.Errorf("days=%d ExpiresAt = %v, want %v", days, act.ExpiresAt, want)
		}
	}
}

func TestCheckHardware(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.eng.CheckHardware(ctx, "unknown")
	if err != nil {
		t.Fatalf("CheckHardware(unknown): %v", err)
	}
	if st.Activated || st.Found {
		t.Errorf("unknown hardware status = %+v", st)
	}

	c := f.codes(t, 1, 1)[0]
	act, err := f.eng.Activate(ctx, c.Code, "H1")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}

	st, _ = f.eng.CheckHardware(ctx, "H1")
	if !st.Activated || st.LicenseType != "standard" || st.ExpiresAt == nil || !st.ExpiresAt.Equal(act.ExpiresAt) {
		t.Errorf("active status = %+v", st)
	}

	f.clock.Set(act.ExpiresAt)
	st, _ = f.eng.CheckHardware(ctx, "H1")
	if !st.Activated {
		t.Error("license expiring exactly now should be active")
	}

	f.clock.Set(act.ExpiresAt.Add(time.Second))
	st, _ = f.eng.CheckHardware(ctx, "H1")
	if st.Activated || !st.Expired || st.ExpiresAt != nil {
		t.Errorf("expired status = %+v", st)
	}
	if _, err := f.store.BindingByHardware(ctx, "H1"); err != nil {
		t.Errorf("expired binding should be retained: %v", err)
	}

	if _, err := f.eng.CheckHardware(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("CheckHardware(empty) error = %v, want ErrValidation", err)
	}
}

func TestConcurrentActivationSameCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.codes(t, 1, 30)[0]

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.eng.Activate(ctx, c.Code, fmt.Sprintf("HW-%d", i))
		}(i)
	}
	wg.Wait()

	success, used := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrCodeAlreadyUsed):
			used++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if success != 1 || used != n-1 {
		t.Errorf("success = %d, already used = %d; want 1 and %d", success, used, n-1)
	}
	if total, _ := f.store.CountBindings(ctx); total != 1 {
		t.Errorf("CountBindings = %d, want 1", total)
	}
}

// Separate stores on one file stand in for separate processes (a server and
// an offline CLI command) racing on the same code.
func TestConcurrentActivationAcrossStores(t *testing.T) {
	ctx := context.Background()
	dsn := storetest.FileDSN(t)
	const stores = 4
	engines := make([]*Engine, stores)
	var first *store.Store
	for i := range engines {
		s := storetest.Open(t, dsn)
		if first == nil {
			first = s
		}
		engines[i] = NewEngine(s, WithClock(func() time.Time { return start }))
	}
	gen := NewGenerator(first, WithClock(func() time.Time { return start }))

	for round := 0; round < 3; round++ {
		codes, err := gen.Generate(ctx, GenerateRequest{LicenseType: "standard", DurationDays: 30, Count: 1})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		code := codes[0].Code

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = engines[i%stores].Activate(ctx, code, fmt.Sprintf("HW-%d-%d", round, i))
			}(i)
		}
		wg.Wait()

		success, used := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrCodeAlreadyUsed):
				used++
			default:
				t.Errorf("round %d: unexpected error: %v", round, err)
			}
		}
		if success != 1 || used != n-1 {
			t.Errorf("round %d: success = %d, already used = %d; want 1 and %d", round, success, used, n-1)
		}
	}
	if total, _ := first.CountBindings(ctx); total != 3 {
		t.Errorf("CountBindings = %d, want 3", total)
	}
}

func TestConcurrentActivationSameHardware(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	codes := f.codes(t, 4, 30)

	var wg sync.WaitGroup
	errs := make([]error, len(codes))
	for i, c := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			_, errs[i] = f.eng.Activate(ctx, code, "SHARED-HW")
		}(i, c.Code)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Activate(%d): %v", i, err)
		}
	}
	if total, _ := f.store.CountBindings(ctx); total != 1 {
		t.Errorf("CountBindings = %d, want 1", total)
	}
	if used, _ := f.store.CountCodes(ctx, model.CodeFilterUsed); used != int64(len(codes)) {
		t.Errorf("used codes = %d, want %d", used, len(codes))
	}
}

// The end-to-end flow an operator goes through when a customer replaces a
// machine.
func TestReleaseAndReactivateScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	codes := f.codes(t, 3, 30)

	if _, err := f.eng.Activate(ctx, codes[0].Code, "H1"); err != nil {
		t.Fatalf("Activate(H1): %v", err)
	}
	if _, err := f.eng.Activate(ctx, codes[0].Code, "H2"); !errors.Is(err, ErrCodeAlreadyUsed) {
		t.Fatalf("Activate(H2) error = %v, want ErrCodeAlreadyUsed", err)
	}

	b, err := f.gw.BindingForHardware(ctx, "H1")
	if err != nil || b == nil {
		t.Fatalf("BindingForHardware(H1) = %v, %v", b, err)
	}
	ok, err := f.gw.DeleteBinding(ctx, b.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteBinding = %v, %v", ok, err)
	}

	act, err := f.eng.Activate(ctx, codes[0].Code, "H2")
	if err != nil {
		t.Fatalf("Activate(H2) after release: %v", err)
	}
	if act.HardwareID != "H2" {
		t.Errorf("HardwareID = %q", act.HardwareID)
	}
	st, _ := f.eng.CheckHardware(ctx, "H1")
	if st.Activated {
		t.Error("H1 should no longer be activated")
	}
}
