package telemetry

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	progrockadapter "go.trai.ch/fab/internal/adapters/telemetry/progrock"
	"go.trai.ch/fab/internal/core/ports"
)

// NodeID is the unique identifier for the tracer Graft node.
const NodeID graft.ID = "adapter.telemetry"

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Tracer, error) {
			switch os.Getenv("FAB_PROGRESS") {
			case "none":
				return NewNoOpTracer(), nil
			case "tape":
				return progrockadapter.New(), nil
			default:
				return NewStream(os.Stdout, os.Stderr), nil
			}
		},
	})
}
