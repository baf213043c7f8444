package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PratikDhanave/celebration-webhook/internal/client"
	"github.com/PratikDhanave/celebration-webhook/internal/config"
	"github.com/PratikDhanave/celebration-webhook/internal/led"
	"github.com/PratikDhanave/celebration-webhook/internal/logger"
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
		fmt.Printf("ledclient %s (%s)\n", version, commit)
		return
	}

	cfg, err := config.LoadClient(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Configure(cfg.LogFormat, cfg.LogLevel)

	if err := run(cfg); err != nil {
		logger.Get(logger.Main).Error("LED client failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.ClientConfig) error {
	log := logger.Get(logger.Main)

	ident, err := config.LoadIdentity(cfg.IdentityFile)
	if err != nil {
		return err
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting LED client",
		"device_id", ident.DeviceID,
		"api", cfg.APIBase,
		"ws", cfg.WSURL,
		"version", version,
	)
	return client.New(cfg, ident, runner).Run(ctx)
}
