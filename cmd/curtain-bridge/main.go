package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"curtain-bridge/internal/curtain"
	"curtain-bridge/internal/transport"
	"curtain-bridge/internal/zcl"
	"curtain-bridge/internal/zcl/clusters"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	Device struct {
		Name           string `yaml:"name"`
		Endpoints      []int  `yaml:"endpoints"`
		CommandSpacing string `yaml:"command_spacing"`
	} `yaml:"device"`
	Transport struct {
		Type      string `yaml:"type"` // "serial" or "websocket"
		Port      string `yaml:"port"`
		Baud      int    `yaml:"baud"`
		URL       string `yaml:"url"`
		QueueSize int    `yaml:"queue_size"`
	} `yaml:"transport"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	ScriptsDir string `yaml:"scripts_dir"`
}

func (c *Config) validate() error {
	if len(c.Device.Endpoints) == 0 {
		return fmt.Errorf("device.endpoints is required")
	}
	seen := make(map[int]bool)
	for _, ep := range c.Device.Endpoints {
		if ep < 1 || ep > 255 {
			return fmt.Errorf("device.endpoints: %d is not in 1-255", ep)
		}
		if seen[ep] {
			return fmt.Errorf("device.endpoints: %d listed twice", ep)
		}
		seen[ep] = true
	}
	if _, err := c.spacing(); err != nil {
		return err
	}
	switch c.Transport.Type {
	case "serial":
		if c.Transport.Port == "" {
			return fmt.Errorf("transport.port is required for serial transport")
		}
	case "websocket":
		if c.Transport.URL == "" {
			return fmt.Errorf("transport.url is required for websocket transport")
		}
	default:
		return fmt.Errorf("unknown transport.type: %q (supported: serial, websocket)", c.Transport.Type)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

// spacing parses device.command_spacing.
func (c *Config) spacing() (time.Duration, error) {
	d, err := time.ParseDuration(c.Device.CommandSpacing)
	if err != nil {
		return 0, fmt.Errorf("device.command_spacing: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("device.command_spacing must be positive, got %s", d)
	}
	return d, nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("curtain-bridge starting", "version", version, "device", cfg.Device.Name)

	if err := run(cfg, logger); err != nil {
		logger.Error("curtain-bridge stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("goodbye")
}

func run(cfg *Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := zcl.NewRegistry(logger)
	registerClusters(registry)

	link, err := createLink(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create transport link: %w", err)
	}

	spacing, _ := cfg.spacing()
	tr := transport.New(link, cfg.Transport.QueueSize, logger)
	events := curtain.NewEventBus(logger)
	dev := curtain.NewDevice(curtain.Config{
		Name:    cfg.Device.Name,
		Spacing: spacing,
	}, curtain.StaticEndpoints(cfg.Device.Endpoints), tr, registry, events, logger)
	tr.OnLine(dev.HandleLine)

	// Automation and MQTT are no-ops when built with no_automation / no_mqtt.
	auto := initAutomation(dev, cfg, logger)
	mqtt := initMQTT(dev, cfg, logger)

	runErr := make(chan error, 1)
	go func() { runErr <- tr.Run(ctx) }()

	// Learn the current state of every gang.
	if err := dev.RefreshAll(); err != nil {
		logger.Warn("initial refresh", "err", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		err = <-runErr
	case err = <-runErr:
		if err != nil {
			logger.Error("transport failed", "err", err)
		}
	}

	auto.Stop()
	mqtt.Stop()
	return err
}

func createLink(ctx context.Context, cfg *Config, logger *slog.Logger) (transport.Link, error) {
	switch cfg.Transport.Type {
	case "serial":
		logger.Info("using serial hub link", "port", cfg.Transport.Port, "baud", cfg.Transport.Baud)
		return transport.OpenSerial(cfg.Transport.Port, cfg.Transport.Baud)
	case "websocket":
		logger.Info("using websocket hub link", "url", cfg.Transport.URL)
		return transport.DialWebsocket(ctx, cfg.Transport.URL)
	default:
		return nil, errors.New("unknown transport type: " + cfg.Transport.Type)
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Device.Name == "" {
		cfg.Device.Name = "curtains"
	}
	if len(cfg.Device.Endpoints) == 0 {
		cfg.Device.Endpoints = []int{1, 2}
	}
	if cfg.Device.CommandSpacing == "" {
		cfg.Device.CommandSpacing = curtain.DefaultSpacing.String()
	}
	if cfg.Transport.Type == "" {
		cfg.Transport.Type = "serial"
	}
	if cfg.Transport.Baud == 0 {
		cfg.Transport.Baud = transport.DefaultBaudRate
	}
	if cfg.Transport.QueueSize == 0 {
		cfg.Transport.QueueSize = transport.DefaultQueueSize
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "curtains"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func registerClusters(r *zcl.Registry) {
	r.Register(clusters.Basic)          // 0x0000, for naming foreign frames in logs
	r.Register(clusters.WindowCovering) // 0x0102
}
