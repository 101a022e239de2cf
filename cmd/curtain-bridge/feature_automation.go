//go:build !no_automation

package main

import (
	"log/slog"

	"curtain-bridge/internal/automation"
)

type autoStopper struct {
	engine *automation.Engine
}

func (a *autoStopper) Stop() {
	if a.engine != nil {
		a.engine.Stop()
	}
}

func initAutomation(ctrl automation.Controller, cfg *Config, logger *slog.Logger) *autoStopper {
	scriptMgr, err := automation.NewManager(cfg.ScriptsDir, logger)
	if err != nil {
		logger.Error("create script manager", "err", err)
		return &autoStopper{}
	}
	engine := automation.NewEngine(ctrl, scriptMgr, logger)
	engine.Start()
	return &autoStopper{engine: engine}
}
