package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PratikDhanave/celebration-webhook/internal/auth"
	"github.com/PratikDhanave/celebration-webhook/internal/config"
	"github.com/PratikDhanave/celebration-webhook/internal/httpserver"
	"github.com/PratikDhanave/celebration-webhook/internal/hub"
	"github.com/PratikDhanave/celebration-webhook/internal/led"
	"github.com/PratikDhanave/celebration-webhook/internal/logger"
	"github.com/PratikDhanave/celebration-webhook/internal/metrics"
	"github.com/PratikDhanave/celebration-webhook/internal/store"
)

// Build variables - set by ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("webhookd %s (%s)\n", version, commit)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Configure(cfg.LogFormat, cfg.LogLevel)

	if err := run(cfg); err != nil {
		logger.Get(logger.Main).Error("Webhook server failed", "error", err)
		os.Exit(1)
	}
}

// run boots the service: store -> strip -> hub -> HTTP server, then waits for
// a signal.
func run(cfg config.Config) error {
	log := logger.Get(logger.Main)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Options{Driver: cfg.StoreDriver, DBURL: cfg.DBURL, DBPath: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("opening device store: %w", err)
	}
	defer st.Close()

	m := metrics.New()
	h := hub.New(m)
	defer h.Close()

	deps := httpserver.Deps{Store: st, Hub: h, Metrics: m}

	if cfg.Profile == config.ProfileCelebration {
		strip, err := led.Open(led.HardwareConfig{
			Driver:     cfg.LEDDriver,
			Count:      cfg.LEDCount,
			Pin:        cfg.LEDPin,
			Brightness: cfg.LEDBrightness,
		})
		if err != nil {
			return fmt.Errorf("opening led strip: %w", err)
		}
		runner := led.NewRunner(strip, led.WithBrightness(cfg.LEDBrightness))
		defer func() {
			if err := runner.Close(); err != nil {
				log.Warn("Closing strip failed", "error", err)
			}
		}()
		deps.LED = runner
	}

	if cfg.RateLimitRPS > 0 {
		deps.Limiter = auth.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	srv := httpserver.NewServer(cfg, deps)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	log.Info("Webhook server started",
		"profile", cfg.Profile,
		"addr", srv.Addr(),
		"store", cfg.StoreDriver,
		"version", version,
	)

	g, gctx := errgroup.WithContext(ctx)

	if deps.Limiter != nil {
		g.Go(func() error {
			t := time.NewTicker(time.Minute)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					n := deps.Limiter.Sweep()
					logger.Get(logger.Limiter).Debug("Swept idle visitors", "remaining", n)
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Get(logger.Shutdown).Info("Shutting down gracefully")
		if err := srv.Stop(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("stopping HTTP server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
