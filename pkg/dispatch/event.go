package dispatch

import (
	"time"

	"github.com/lisanmuaddib/meshbot-go/pkg/interfaces/mesh"
)

// Event is one unit of work for the dispatcher: either a periodic tick or
// an inbound packet.
type Event struct {
	Time   time.Time
	Packet *mesh.Packet
}

// TickEvent builds a periodic tick event for the given time.
func TickEvent(now time.Time) Event {
	return Event{Time: now}
}

// PacketEvent wraps an inbound packet.
func PacketEvent(pkt *mesh.Packet) Event {
	return Event{Time: time.Now(), Packet: pkt}
}

// IsPacket reports whether the event carries an inbound packet.
func (e Event) IsPacket() bool {
	return e.Packet != nil
}
