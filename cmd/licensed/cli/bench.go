package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/faucetdb/licensed/internal/config"
	"github.com/faucetdb/licensed/internal/connector"
	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/store"
)

func newBenchCmd() *cobra.Command {
	var (
		driver      string
		dsn         string
		codes       int
		duration    time.Duration
		concurrency int
	)

	cmd := &cobra.Command{
		Use:     "bench",
		Aliases: []string{"benchmark"},
		Short:   "Benchmark activation and hardware check throughput",
		Long: `Run a load test against a license database. The benchmark generates a
batch of codes, activates all of them concurrently, then runs hardware checks
against the resulting bindings for the given duration.

Without --dsn a throwaway SQLite database in a temporary directory is used.
With --dsn the benchmark writes codes and bindings into that database; point
it at a scratch database, never production.`,
		Example: `  licensed bench
  licensed bench --driver postgres --dsn "postgres://localhost/license_bench" --concurrency 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), cmd.OutOrStdout(), benchOptions{
				driver:      driver,
				dsn:         dsn,
				codes:       codes,
				duration:    duration,
				concurrency: concurrency,
			})
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "sqlite", "Database driver (sqlite, mysql, postgres, mssql)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Connection string (default: temporary SQLite database)")
	cmd.Flags().IntVar(&codes, "codes", 1000, "Number of codes to generate and activate")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "Duration of the hardware check phase")
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "Number of concurrent workers")

	return cmd
}

type benchOptions struct {
	driver      string
	dsn         string
	codes       int
	duration    time.Duration
	concurrency int
}

// latencyRecorder collects per-operation latencies from concurrent workers.
type latencyRecorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	errors    atomic.Int64
}

func (l *latencyRecorder) observe(d time.Duration, err error) {
	if err != nil {
		l.errors.Add(1)
		return
	}
	l.mu.Lock()
	l.latencies = append(l.latencies, d)
	l.mu.Unlock()
}

// percentile returns the p-th percentile of sorted latencies.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (l *latencyRecorder) report(w io.Writer, title string, elapsed time.Duration) {
	slices.Sort(l.latencies)
	ops := len(l.latencies)

	fmt.Fprintln(w, title)
	fmt.Fprintln(w, "-------------------")
	fmt.Fprintf(w, "  Operations:     %d\n", ops)
	fmt.Fprintf(w, "  Errors:         %d\n", l.errors.Load())
	if elapsed > 0 {
		fmt.Fprintf(w, "  Ops/sec:        %.1f\n", float64(ops)/elapsed.Seconds())
	}
	if ops > 0 {
		fmt.Fprintf(w, "  Latency p50:    %s\n", percentile(l.latencies, 50))
		fmt.Fprintf(w, "  Latency p95:    %s\n", percentile(l.latencies, 95))
		fmt.Fprintf(w, "  Latency p99:    %s\n", percentile(l.latencies, 99))
		fmt.Fprintf(w, "  Latency max:    %s\n", l.latencies[ops-1])
	}
	fmt.Fprintln(w)
}

func runBench(ctx context.Context, w io.Writer, opts benchOptions) error {
	if opts.codes < 1 || opts.concurrency < 1 {
		return fmt.Errorf("--codes and --concurrency must be positive")
	}

	if opts.dsn == "" {
		if opts.driver != "sqlite" {
			return fmt.Errorf("--dsn is required for driver %q", opts.driver)
		}
		dir, err := os.MkdirTemp("", "licensed-bench-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		opts.dsn = config.DefaultSQLiteDSN(dir)
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "Licensed Benchmark")
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(w, "Target: %s @ %s\n", opts.driver, connector.RedactDSN(opts.dsn))
	fmt.Fprintf(w, "Codes: %d | Check phase: %s | Concurrency: %d\n", opts.codes, opts.duration, opts.concurrency)
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)

	memBefore := captureMemStats()

	fmt.Fprint(w, "Connecting... ")
	conn, err := newRegistry().Open(connector.ConnectionConfig{
		Driver:       opts.driver,
		DSN:          opts.dsn,
		MaxOpenConns: opts.concurrency + 5,
		MaxIdleConns: opts.concurrency,
	})
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	s := store.New(conn)
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "ok")

	quiet := license.WithLogger(slog.New(slog.DiscardHandler))
	gen := license.NewGenerator(s, quiet)
	engine := license.NewEngine(s, quiet)

	fmt.Fprint(w, "Generating codes... ")
	genStart := time.Now()
	var batch []string
	for remaining := opts.codes; remaining > 0; {
		n := min(remaining, 100)
		minted, err := gen.Generate(ctx, license.GenerateRequest{LicenseType: "bench", DurationDays: 30, Count: n})
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		for _, c := range minted {
			batch = append(batch, c.Code)
		}
		remaining -= n
	}
	fmt.Fprintf(w, "done (%d in %s)\n\n", len(batch), time.Since(genStart).Round(time.Millisecond))

	// Activation phase: every code is redeemed once by a fresh hardware id.
	activations := &latencyRecorder{}
	hardware := make([]string, len(batch))
	var next atomic.Int64
	actStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.concurrency; i++ {
		g.Go(func() error {
			for {
				idx := int(next.Add(1)) - 1
				if idx >= len(batch) || gctx.Err() != nil {
					return nil
				}
				hw := "bench-" + uuid.NewString()
				start := time.Now()
				_, err := engine.Activate(gctx, batch[idx], hw)
				activations.observe(time.Since(start), err)
				if err == nil {
					hardware[idx] = hw
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	activations.report(w, "Activation", time.Since(actStart))

	bound := slices.DeleteFunc(hardware, func(hw string) bool { return hw == "" })
	if len(bound) == 0 {
		return fmt.Errorf("no activation succeeded; nothing to check")
	}

	// Check phase: random lookups of bound hardware ids until the deadline.
	checks := &latencyRecorder{}
	checkCtx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()
	checkStart := time.Now()
	g, gctx = errgroup.WithContext(checkCtx)
	for i := 0; i < opts.concurrency; i++ {
		g.Go(func() error {
			for gctx.Err() == nil {
				hw := bound[rand.IntN(len(bound))]
				start := time.Now()
				st, err := engine.CheckHardware(gctx, hw)
				if gctx.Err() != nil {
					return nil
				}
				if err == nil && !st.Activated {
					err = fmt.Errorf("hardware %s not active", hw)
				}
				checks.observe(time.Since(start), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	checks.report(w, "Hardware check", time.Since(checkStart))

	memAfter := captureMemStats()
	fmt.Fprintln(w, "Memory")
	fmt.Fprintln(w, "------")
	fmt.Fprintf(w, "  Heap before:    %s\n", formatBytes(memBefore.HeapAlloc))
	fmt.Fprintf(w, "  Heap after:     %s\n", formatBytes(memAfter.HeapAlloc))
	fmt.Fprintf(w, "  Sys before:     %s\n", formatBytes(memBefore.Sys))
	fmt.Fprintf(w, "  Sys after:      %s\n", formatBytes(memAfter.Sys))
	return nil
}

// memStats captures a snapshot of memory statistics for reporting.
type memStats struct {
	HeapAlloc uint64
	Sys       uint64
}

func captureMemStats() memStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return memStats{HeapAlloc: m.HeapAlloc, Sys: m.Sys}
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
