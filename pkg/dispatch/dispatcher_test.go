package dispatch_test

import (
	"context"
	"time"

	"github.com/lisanmuaddib/meshbot-go/pkg/actions"
	"github.com/lisanmuaddib/meshbot-go/pkg/dispatch"
	"github.com/lisanmuaddib/meshbot-go/pkg/interfaces/mesh"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Dispatcher", func() {
	var (
		ctx  context.Context
		conn nopTransport
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	newDispatcher := func(registry *actions.Registry, store actions.NodeStore, opts ...dispatch.Option) *dispatch.Dispatcher {
		d := dispatch.New(registry, store, quietLogger(), opts...)
		d.Bind(conn, 42)
		return d
	}

	packet := func() *mesh.Packet {
		return &mesh.Packet{From: 7, To: 42, Port: mesh.PortTextMessage, Payload: []byte("hi")}
	}

	Describe("tick events", func() {
		It("fires a time-eligible action exactly when ShouldRun is true", func() {
			willing := &tickOnly{name: "willing", should: true}
			unwilling := &tickOnly{name: "unwilling", should: false}
			d := newDispatcher(loadRegistry(willing, unwilling), nil)

			d.Dispatch(ctx, dispatch.TickEvent(time.Now()))

			Expect(willing.count()).To(Equal(1))
			Expect(unwilling.count()).To(BeZero())
		})

		It("never fires event-only actions on ticks", func() {
			evented := &packetOnly{name: "evented", should: true}
			d := newDispatcher(loadRegistry(evented), nil)

			d.Dispatch(ctx, dispatch.TickEvent(time.Now()))

			Expect(evented.count()).To(BeZero())
		})

		It("passes the connection handle and own identity but no packet", func() {
			action := &tickOnly{name: "a", should: true}
			d := newDispatcher(loadRegistry(action), nil)

			d.Dispatch(ctx, dispatch.TickEvent(time.Now()))

			in := action.last()
			Expect(in.Conn).NotTo(BeNil())
			Expect(in.Self).To(Equal(uint32(42)))
			Expect(in.Packet).To(BeNil())
		})
	})

	Describe("packet events", func() {
		It("consults event eligibility, never time eligibility", func() {
			action := &dualAction{name: "dual"}
			d := newDispatcher(loadRegistry(action), nil)

			d.Dispatch(ctx, dispatch.PacketEvent(packet()))

			Expect(action.handleCalls).To(Equal(1))
			Expect(action.shouldRunCalls).To(BeZero())
			Expect(action.count()).To(Equal(1))
			Expect(action.last().Packet).NotTo(BeNil())
		})

		It("skips actions whose event eligibility declines", func() {
			action := &packetOnly{name: "picky", should: false}
			d := newDispatcher(loadRegistry(action), nil)

			d.Dispatch(ctx, dispatch.PacketEvent(packet()))

			Expect(action.count()).To(BeZero())
		})

		It("never fires tick-only actions on packets by default", func() {
			legacy := &legacyTickConsumer{tickOnly: tickOnly{name: "legacy", should: true}, consumes: true}
			d := newDispatcher(loadRegistry(legacy), nil)

			d.Dispatch(ctx, dispatch.PacketEvent(packet()))

			Expect(legacy.count()).To(BeZero())
		})

		Context("with the legacy tick fallback enabled", func() {
			It("fires tick-eligible packet consumers and hands them the packet", func() {
				legacy := &legacyTickConsumer{tickOnly: tickOnly{name: "legacy", should: true}, consumes: true}
				d := newDispatcher(loadRegistry(legacy), nil, dispatch.WithLegacyTickFallback())

				d.Dispatch(ctx, dispatch.PacketEvent(packet()))

				Expect(legacy.count()).To(Equal(1))
				Expect(legacy.last().Packet).NotTo(BeNil())
			})

			It("still skips tick actions that do not consume packets", func() {
				plain := &tickOnly{name: "plain", should: true}
				declining := &legacyTickConsumer{tickOnly: tickOnly{name: "declining", should: true}, consumes: false}
				d := newDispatcher(loadRegistry(plain, declining), nil, dispatch.WithLegacyTickFallback())

				d.Dispatch(ctx, dispatch.PacketEvent(packet()))

				Expect(plain.count()).To(BeZero())
				Expect(declining.count()).To(BeZero())
			})

			It("skips tick consumers whose interval has not elapsed", func() {
				legacy := &legacyTickConsumer{tickOnly: tickOnly{name: "legacy", should: false}, consumes: true}
				d := newDispatcher(loadRegistry(legacy), nil, dispatch.WithLegacyTickFallback())

				d.Dispatch(ctx, dispatch.PacketEvent(packet()))

				Expect(legacy.count()).To(BeZero())
			})
		})
	})

	Describe("failure isolation", func() {
		It("keeps dispatching after an action fails", func() {
			failing := &packetOnly{name: "failing", should: true, fail: errAlwaysFails}
			succeeding := &packetOnly{name: "succeeding", should: true}
			d := newDispatcher(loadRegistry(failing, succeeding), nil)

			d.Dispatch(ctx, dispatch.PacketEvent(packet()))

			Expect(failing.count()).To(Equal(1))
			Expect(succeeding.count()).To(Equal(1))
		})
	})

	Describe("binding", func() {
		It("drops events while no connection is bound", func() {
			action := &tickOnly{name: "a", should: true}
			d := dispatch.New(loadRegistry(action), nil, quietLogger())

			d.Dispatch(ctx, dispatch.TickEvent(time.Now()))

			Expect(action.count()).To(BeZero())
		})

		It("drops events again after Unbind", func() {
			action := &tickOnly{name: "a", should: true}
			d := newDispatcher(loadRegistry(action), nil)

			d.Dispatch(ctx, dispatch.TickEvent(time.Now()))
			d.Unbind()
			d.Dispatch(ctx, dispatch.TickEvent(time.Now()))

			Expect(action.count()).To(Equal(1))
		})
	})
})
