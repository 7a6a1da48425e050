package shell

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pour/internal/adapters/logger"
	"go.trai.ch/pour/internal/core/ports"
)

// NodeID is the unique identifier for the process spawner Graft node.
const NodeID graft.ID = "adapter.spawner"

func init() {
	graft.Register(graft.Node[ports.ProcessSpawner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.ProcessSpawner, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewSpawner(log), nil
		},
	})
}
