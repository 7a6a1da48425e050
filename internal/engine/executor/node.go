package executor

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pour/internal/adapters/cas"                //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pour/internal/adapters/fetch"              //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pour/internal/adapters/fs"                 //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pour/internal/adapters/logger"             //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pour/internal/adapters/shell"              //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pour/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pour/internal/core/ports"
)

// NodeID is the unique identifier for the executor Graft node.
const NodeID graft.ID = "engine.executor"

func init() {
	graft.Register(graft.Node[*Executor]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			fetch.NodeID,
			fs.VerifierNodeID,
			fs.ExtractorNodeID,
			shell.NodeID,
			fs.HasherNodeID,
			cas.NodeID,
			progrock.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Executor, error) {
			fetcher, err := graft.Dep[ports.Fetcher](ctx)
			if err != nil {
				return nil, err
			}

			verifier, err := graft.Dep[ports.ChecksumVerifier](ctx)
			if err != nil {
				return nil, err
			}

			extractor, err := graft.Dep[ports.Extractor](ctx)
			if err != nil {
				return nil, err
			}

			spawner, err := graft.Dep[ports.ProcessSpawner](ctx)
			if err != nil {
				return nil, err
			}

			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}

			store, err := graft.Dep[ports.ReceiptStore](ctx)
			if err != nil {
				return nil, err
			}

			telemetry, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return New(fetcher, verifier, extractor, spawner, hasher, store, telemetry, log), nil
		},
	})
}
