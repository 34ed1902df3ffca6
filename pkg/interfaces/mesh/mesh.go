// Package mesh provides the capability surface for talking to a mesh-radio
// device and a framed-stream client implementation over TCP or serial.
package mesh

import (
	"context"
	"time"
)

// Well-known payload discriminators carried by inbound packets.
const (
	PortTextMessage = "TEXT_MESSAGE_APP"
	PortPosition    = "POSITION_APP"
	PortNodeInfo    = "NODEINFO_APP"
	PortTelemetry   = "TELEMETRY_APP"
)

// Broadcast is the destination node number for mesh-wide messages.
const Broadcast uint32 = 0xffffffff

// Packet is a single inbound event from the device. RxRSSI and RxSNR are
// only present when the packet was heard directly over radio; packets
// relayed through MQTT or another hop omit them.
type Packet struct {
	From    uint32   `json:"from"`
	To      uint32   `json:"to"`
	Port    string   `json:"portnum"`
	Payload []byte   `json:"payload,omitempty"`
	RxRSSI  *int32   `json:"rxRssi,omitempty"`
	RxSNR   *float64 `json:"rxSnr,omitempty"`
}

// DirectRF reports whether the packet was received directly over radio.
func (p *Packet) DirectRF() bool {
	return p != nil && p.RxRSSI != nil && p.RxSNR != nil
}

// NodeInfo describes one entry of the device's node database.
type NodeInfo struct {
	Num        uint32    `json:"num"`
	LongName   string    `json:"longName,omitempty"`
	ShortName  string    `json:"shortName,omitempty"`
	IsFavorite bool      `json:"isFavorite,omitempty"`
	ViaMQTT    bool      `json:"viaMqtt,omitempty"`
	LastHeard  time.Time `json:"lastHeard,omitempty"`
}

// PacketHandlerFunc consumes inbound packets pushed by the transport.
type PacketHandlerFunc func(*Packet)

// Transport is the connection handle to a mesh device. Implementations must
// be safe for concurrent use; Close must be idempotent.
type Transport interface {
	// NodeNum returns the device's own node number, resolved during connect.
	NodeNum() uint32
	// SendText delivers a text message to the given destination node.
	SendText(ctx context.Context, dest uint32, text string) error
	// Heartbeat probes liveness of the device link.
	Heartbeat() error
	// Subscribe registers the consumer of inbound packets. Only one
	// consumer is supported; a later call replaces the earlier one.
	Subscribe(h PacketHandlerFunc)
	// Unsubscribe drops the current packet consumer.
	Unsubscribe()
	// Nodes returns a snapshot of the device's node database.
	Nodes() []NodeInfo
	// RemoveNode deletes a node from the device's node database.
	RemoveNode(num uint32) error
	// Reboot asks the device to restart.
	Reboot() error
	// Close tears down the link. Safe to call more than once.
	Close() error
}
