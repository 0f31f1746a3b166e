package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/gnss-relay/internal/buffer"
	"github.com/and161185/gnss-relay/internal/buildinfo"
	"github.com/and161185/gnss-relay/internal/client"
	"github.com/and161185/gnss-relay/internal/config"
	"github.com/and161185/gnss-relay/internal/metrics"
	"github.com/and161185/gnss-relay/internal/source"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

// simulated navigation messages per measurement events
const navEvery = 5

func main() {
	buildinfo.BuildVersion, buildinfo.BuildDate, buildinfo.BuildCommit = buildVersion, buildDate, buildCommit
	buildinfo.PrintBuildInfo(os.Stdout, "agent")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.NewClientConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = cfg.Logger.Sync() }()

	if err := run(ctx, cfg); err != nil {
		cfg.Logger.Fatal(err)
	}
}

func newSource(cfg *config.ClientConfig) source.Source {
	if cfg.Source == config.SourceReplay {
		return source.Replay{Path: cfg.ReplayFile, Speed: 1}
	}
	sim := source.Simulator{Interval: time.Duration(cfg.PollInterval) * time.Second}
	if cfg.SendNav {
		sim.NavEvery = navEvery
	}
	return sim
}

func run(ctx context.Context, cfg *config.ClientConfig) error {
	log := cfg.Logger
	metrics.Init()

	policy, err := buffer.ParsePolicy(cfg.OverflowPolicy)
	if err != nil {
		return err
	}
	buf := buffer.New(buffer.Config{Capacity: cfg.BufferCapacity, Policy: policy, WarnAt: cfg.WarnAt}, log)

	c, err := client.NewClient(newSource(cfg), buf, cfg)
	if err != nil {
		return err
	}

	if cfg.RecordFile != "" {
		f, err := os.OpenFile(cfg.RecordFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open record file: %w", err)
		}
		defer f.Close()
		c.Record = f
	}

	if cfg.MetricsAddr != "" {
		ms := serveMetrics(cfg.MetricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ms.Shutdown(shutdownCtx)
		}()
	}

	log.Infow("agent started", append([]any{
		"server", cfg.ServerAddr, "mode", cfg.Mode, "source", cfg.Source,
		"reportInterval", cfg.ReportInterval, "rateLimit", cfg.RateLimit,
		"bufferCapacity", cfg.BufferCapacity, "overflowPolicy", policy,
		"gzip", cfg.Gzip, "encrypted", cfg.CryptoKeyPath != "", "sendNav", cfg.SendNav,
	}, buildinfo.Fields()...)...)

	err = c.Run(ctx)
	log.Infow("agent stopped", "dropped", buf.Dropped())
	return err
}

func serveMetrics(addr string, log *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	ms := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return ms
}
