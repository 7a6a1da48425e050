package fetch

import (
	"context"
	"net/http"

	"github.com/grindlemire/graft"
	"go.trai.ch/pour/internal/adapters/logger"
	"go.trai.ch/pour/internal/adapters/settings"
	"go.trai.ch/pour/internal/core/ports"
)

// NodeID is the unique identifier for the fetcher Graft node.
const NodeID graft.ID = "adapter.fetcher"

func init() {
	graft.Register(graft.Node[ports.Fetcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID, settings.NodeID},
		Run: func(ctx context.Context) (ports.Fetcher, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := graft.Dep[*settings.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return New(http.DefaultClient, cfg.CacheDir, log), nil
		},
	})
}
