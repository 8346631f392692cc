// Prioinv measures how the lock protocol of a shared resource affects the
// latency of the most urgent thread contending for it.
//
// It takes no flags. Three trials run back to back, one per protocol, with the
// holder, background and contender threads at FIFO priorities 10, 20 and 30
// pinned to CPU 0. Real-time scheduling needs CAP_SYS_NICE or an RLIMIT_RTPRIO
// allowance; without it the run fails unless fallback is allowed.
//
// The roles are pinned but the orchestrator that starts them is not, and it
// runs at default scheduling. On a single-CPU host it cannot start the
// contender while the holder spins, so no inversion is observed there.
//
// Environment:
//
//	PRIOINV_ALLOW_FALLBACK  run under default scheduling when refused (annotated)
//	PRIOINV_ROUNDS          number of times each protocol is measured (default 1)
//	PRIOINV_FORMAT          summary format, "text" (default) or "json"
//	PRIOINV_LOG_LEVEL       "debug", "info" (default), "warn" or "error"
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/tomasbasham/prioinv"
)

const benchCPU = 0

type config struct {
	allowFallback bool
	rounds        int
	format        string
	level         slog.Level
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "prioinv: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := prioinv.NewTextLogger(os.Stdout, cfg.level)

	bench := prioinv.NewBench(
		prioinv.WithLogger(logger),
		prioinv.WithCPU(benchCPU),
		prioinv.WithRounds(cfg.rounds),
		prioinv.WithFallback(cfg.allowFallback),
	)

	fmt.Println("=== Priority inversion benchmark ===")

	if runtime.NumCPU() < 2 {
		logger.Warn("single CPU host: the contender starts only after the holder finishes, timings will not show an inversion")
	}

	samples, err := bench.Run(ctx)
	if err != nil {
		logger.Error("benchmark aborted", "error", err)
		return 1
	}

	report, err := prioinv.Summarize(samples)
	if err != nil {
		logger.Error("summary failed", "error", err)
		return 1
	}

	fmt.Println("\n=== Summary ===")
	if cfg.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	} else {
		err = report.Render(os.Stdout)
	}
	if err != nil {
		logger.Error("writing summary", "error", err)
		return 1
	}
	return 0
}

func loadConfig() (config, error) {
	cfg := config{
		rounds: 1,
		format: "text",
		level:  slog.LevelInfo,
	}

	if v, ok := lookupEnv("PRIOINV_ALLOW_FALLBACK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("PRIOINV_ALLOW_FALLBACK: %w", err)
		}
		cfg.allowFallback = b
	}

	if v, ok := lookupEnv("PRIOINV_ROUNDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("PRIOINV_ROUNDS: want a positive integer, got %q", v)
		}
		cfg.rounds = n
	}

	if v, ok := lookupEnv("PRIOINV_FORMAT"); ok {
		switch v {
		case "text", "json":
			cfg.format = v
		default:
			return cfg, fmt.Errorf("PRIOINV_FORMAT: unknown format %q", v)
		}
	}

	if v, ok := lookupEnv("PRIOINV_LOG_LEVEL"); ok {
		if err := cfg.level.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("PRIOINV_LOG_LEVEL: %w", err)
		}
	}

	return cfg, nil
}

// lookupEnv treats an empty variable as unset.
func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}
