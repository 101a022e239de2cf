//go:build no_mqtt

package main

import (
	"log/slog"

	"curtain-bridge/internal/curtain"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *curtain.Device, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
