package actions

import (
	"context"
	"strings"

	"github.com/lisanmuaddib/meshbot-go/pkg/interfaces/mesh"
	"github.com/sirupsen/logrus"
)

// PingPongAction replies "pong" to direct "ping" text messages.
type PingPongAction struct {
	logger *logrus.Logger
}

// NewPingPongAction creates a new ping responder.
func NewPingPongAction(logger *logrus.Logger) *PingPongAction {
	return &PingPongAction{logger: logger}
}

// Name implements the Action interface
func (a *PingPongAction) Name() string {
	return "ping_pong"
}

// ShouldHandle implements the PacketHandler capability. Only text messages
// are interesting; the direct-message checks need the own node id and live
// in Execute.
func (a *PingPongAction) ShouldHandle(pkt *mesh.Packet) bool {
	return pkt != nil && pkt.Port == mesh.PortTextMessage
}

// Execute implements the Action interface
func (a *PingPongAction) Execute(ctx context.Context, in Inputs) error {
	if in.Packet == nil {
		return nil
	}

	text := strings.ToLower(strings.TrimSpace(string(in.Packet.Payload)))
	if text != "ping" {
		return nil
	}

	// Only answer direct messages, and never our own.
	if in.Packet.From == in.Self || in.Packet.To != in.Self {
		return nil
	}

	a.logger.WithFields(logrus.Fields{
		"action":  a.Name(),
		"node_id": in.Packet.From,
	}).Info("Received ping, responding with pong")

	return in.Conn.SendText(ctx, in.Packet.From, "pong")
}

// Info implements the Describer capability
func (a *PingPongAction) Info() Info {
	return Info{
		Name:        "Ping Pong Responder",
		Description: "Responds to 'ping' direct messages with 'pong'",
	}
}
