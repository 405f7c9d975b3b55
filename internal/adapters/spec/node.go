package spec

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/fab/internal/core/ports"
)

// NodeID is the unique identifier for the spec loader Graft node.
const NodeID graft.ID = "adapter.spec_loader"

func init() {
	graft.Register(graft.Node[ports.SpecLoader]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.SpecLoader, error) {
			return NewLoader(), nil
		},
	})
}
