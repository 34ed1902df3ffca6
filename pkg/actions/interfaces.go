package actions

import (
	"context"
	"time"

	"github.com/lisanmuaddib/meshbot-go/pkg/interfaces/mesh"
)

// Action represents a single unit of behavior run by the dispatcher. An
// action is stateless from the engine's perspective; any last-run
// bookkeeping is private to the action itself.
type Action interface {
	// Name returns the unique identifier for this action
	Name() string
	// Execute runs the action against the given inputs
	Execute(ctx context.Context, in Inputs) error
}

// TickHandler is the time-eligibility capability. Actions implementing it
// are considered on every periodic tick.
type TickHandler interface {
	// ShouldRun reports whether the action wants to fire at the given time.
	ShouldRun(now time.Time) bool
}

// PacketHandler is the event-eligibility capability. Actions implementing
// it are considered on every inbound packet, and only they receive the
// packet in their Inputs.
type PacketHandler interface {
	// ShouldHandle reports whether the action wants to fire for the packet.
	ShouldHandle(pkt *mesh.Packet) bool
}

// PacketConsumer marks a tick-driven action written before PacketHandler
// existed that still expects packet input. It is only consulted when the
// dispatcher's legacy tick fallback is enabled.
type PacketConsumer interface {
	ConsumesPackets() bool
}

// Describer exposes optional action metadata for reporting.
type Describer interface {
	Info() Info
}

// Info is descriptive action metadata. A zero Interval means the action is
// event-driven ("on demand").
type Info struct {
	Name        string
	Description string
	Interval    time.Duration
}

// NodeStore is the persistence surface actions may use. Backing store and
// schema are owned by the caller.
type NodeStore interface {
	// Exists reports whether the node has been recorded before.
	Exists(nodeNum uint32) (bool, error)
	// Insert records a node together with an opaque blob.
	Insert(nodeNum uint32, raw []byte) error
}

// Inputs is the uniform execution context handed to every action. Packet is
// only populated when the action declared packet interest; Store is
// populated whenever the dispatcher owns a store. Actions read only the
// fields they need.
type Inputs struct {
	Conn   mesh.Transport
	Self   uint32
	Packet *mesh.Packet
	Store  NodeStore
}
