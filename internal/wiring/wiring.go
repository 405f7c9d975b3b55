// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/fab/internal/adapters/fs"
	_ "go.trai.ch/fab/internal/adapters/logger"
	_ "go.trai.ch/fab/internal/adapters/shell"
	_ "go.trai.ch/fab/internal/adapters/spec"
	_ "go.trai.ch/fab/internal/adapters/state"
	_ "go.trai.ch/fab/internal/adapters/telemetry"
	_ "go.trai.ch/fab/internal/adapters/watch"
	// Register app and engine nodes.
	_ "go.trai.ch/fab/internal/app"
	_ "go.trai.ch/fab/internal/engine/scheduler"
)
