// Package dispatch runs the per-event eligibility and invocation pass over
// the action registry.
package dispatch

import (
	"context"
	"sync"

	"github.com/lisanmuaddib/meshbot-go/pkg/actions"
	"github.com/lisanmuaddib/meshbot-go/pkg/interfaces/mesh"
	"github.com/sirupsen/logrus"
)

// Option allows for customization of the dispatcher
type Option func(*Dispatcher)

// WithLegacyTickFallback lets tick-only actions that declare packet
// interest fire on packets when their time eligibility is currently true.
// This exists so actions written before event eligibility can keep working
// during migration; an action with an elapsed interval will fire on the
// next packet rather than the next tick.
func WithLegacyTickFallback() Option {
	return func(d *Dispatcher) {
		d.legacyFallback = true
	}
}

// Dispatcher evaluates every registered action against a single event and
// invokes the eligible ones, isolating their failures. A mutex serializes
// passes, so the tick loop and the inbound-packet callback may call
// Dispatch concurrently.
type Dispatcher struct {
	registry       *actions.Registry
	store          actions.NodeStore
	logger         *logrus.Logger
	legacyFallback bool

	mu   sync.Mutex
	conn mesh.Transport
	self uint32
}

// New creates a dispatcher over the given registry. The store may be nil
// when no persistence is configured.
func New(registry *actions.Registry, store actions.NodeStore, logger *logrus.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}

	d := &Dispatcher{
		registry: registry,
		store:    store,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bind attaches the live connection handle and own-node identity. Called by
// the supervisor once a connection is established.
func (d *Dispatcher) Bind(conn mesh.Transport, self uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conn = conn
	d.self = self
}

// Unbind detaches the connection handle. Events arriving while unbound are
// dropped.
func (d *Dispatcher) Unbind() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conn = nil
	d.self = 0
}

// Dispatch runs one pass over the registry for the event. Action failures
// are logged with the action id and never propagate; one misbehaving action
// cannot stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		d.logger.Debug("Dispatch skipped: no live connection")
		return
	}

	for _, entry := range d.registry.Entries() {
		eligible, withPacket := d.eligible(entry, event)
		if !eligible {
			continue
		}

		in := actions.Inputs{
			Conn:  d.conn,
			Self:  d.self,
			Store: d.store,
		}
		if withPacket {
			in.Packet = event.Packet
		}

		if err := entry.Action.Execute(ctx, in); err != nil {
			d.logger.WithError(err).WithField("action", entry.ID).Error("Action failed")
			continue
		}

		if event.IsPacket() {
			d.logger.WithField("action", entry.ID).Debug("Completed packet action")
		} else {
			d.logger.WithField("action", entry.ID).Info("Executed time-based action")
		}
	}
}

// eligible decides whether the entry fires for the event and whether its
// inputs include the packet.
func (d *Dispatcher) eligible(entry actions.Entry, event Event) (eligible, withPacket bool) {
	if event.IsPacket() {
		if entry.Packet != nil {
			return entry.Packet.ShouldHandle(event.Packet), true
		}
		if d.legacyFallback && entry.Tick != nil {
			consumer, ok := entry.Action.(actions.PacketConsumer)
			if ok && consumer.ConsumesPackets() && entry.Tick.ShouldRun(event.Time) {
				return true, true
			}
		}
		return false, false
	}

	if entry.Tick != nil {
		return entry.Tick.ShouldRun(event.Time), false
	}
	return false, false
}
