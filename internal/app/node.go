package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pour/internal/adapters/config"             //nolint:depguard // Wired in app layer
	"go.trai.ch/pour/internal/adapters/fetch"              //nolint:depguard // Wired in app layer
	"go.trai.ch/pour/internal/adapters/fs"                 //nolint:depguard // Wired in app layer
	"go.trai.ch/pour/internal/adapters/logger"             //nolint:depguard // Wired in app layer
	"go.trai.ch/pour/internal/adapters/settings"           //nolint:depguard // Wired in app layer
	"go.trai.ch/pour/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in app layer
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/pour/internal/engine/executor"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			executor.NodeID,
			fetch.NodeID,
			fs.VerifierNodeID,
			settings.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			settings.NodeID,
			progrock.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.DescriptorLoader](ctx)
	if err != nil {
		return nil, err
	}

	exec, err := graft.Dep[*executor.Executor](ctx)
	if err != nil {
		return nil, err
	}

	fetcher, err := graft.Dep[ports.Fetcher](ctx)
	if err != nil {
		return nil, err
	}

	verifier, err := graft.Dep[ports.ChecksumVerifier](ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := graft.Dep[*settings.Settings](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, exec, fetcher, verifier, cfg, log), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := graft.Dep[*settings.Settings](ctx)
	if err != nil {
		return nil, err
	}

	telemetry, err := graft.Dep[ports.Telemetry](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:       app,
		Logger:    log,
		Settings:  cfg,
		Telemetry: telemetry,
	}, nil
}
