// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/pour/internal/adapters/cas"
	_ "go.trai.ch/pour/internal/adapters/config"
	_ "go.trai.ch/pour/internal/adapters/fetch"
	_ "go.trai.ch/pour/internal/adapters/fs"
	_ "go.trai.ch/pour/internal/adapters/logger"
	_ "go.trai.ch/pour/internal/adapters/settings"
	_ "go.trai.ch/pour/internal/adapters/shell"
	_ "go.trai.ch/pour/internal/adapters/telemetry/progrock"
	// Register app and engine nodes.
	_ "go.trai.ch/pour/internal/app"
	_ "go.trai.ch/pour/internal/engine/executor"
)
