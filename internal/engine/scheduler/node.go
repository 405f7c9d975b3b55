package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/fab/internal/adapters/fs"        //nolint:depguard // Wired in engine wiring
	"go.trai.ch/fab/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/fab/internal/adapters/shell"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/fab/internal/adapters/state"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/fab/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/fab/internal/core/ports"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			shell.NodeID,
			state.NodeID,
			fs.NodeID,
			telemetry.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}

			store, err := graft.Dep[ports.FingerprintStore](ctx)
			if err != nil {
				return nil, err
			}

			filesystem, err := graft.Dep[ports.FileSystem](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return NewScheduler(
				executor,
				store,
				filesystem,
				tracer,
				log,
			), nil
		},
	})
}
