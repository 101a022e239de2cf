//go:build no_automation

package main

import (
	"log/slog"

	"curtain-bridge/internal/curtain"
)

type autoStopper struct{}

func (a *autoStopper) Stop() {}

func initAutomation(_ *curtain.Device, _ *Config, _ *slog.Logger) *autoStopper {
	return &autoStopper{}
}
