package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lisanmuaddib/meshbot-go/pkg/interfaces/mesh"
	"github.com/sirupsen/logrus"
)

// WelcomeOptions configures the welcome message action
type WelcomeOptions struct {
	Message       string
	SendAttempts  int
	SendBaseDelay time.Duration
}

// WelcomeAction greets nodes heard directly over radio for the first time
// and records them in the node store so they are greeted only once.
type WelcomeAction struct {
	logger  *logrus.Logger
	options WelcomeOptions
}

// NewWelcomeAction creates a new welcome message sender.
func NewWelcomeAction(logger *logrus.Logger, options WelcomeOptions) *WelcomeAction {
	if options.Message == "" {
		options.Message = "Welcome to Meshtastic!"
	}
	if options.SendAttempts == 0 {
		options.SendAttempts = 3
	}
	if options.SendBaseDelay == 0 {
		options.SendBaseDelay = 2 * time.Second
	}
	return &WelcomeAction{logger: logger, options: options}
}

// Name implements the Action interface
func (a *WelcomeAction) Name() string {
	return "welcome_message"
}

// ShouldHandle implements the PacketHandler capability. Every packet is a
// chance to hear a new node; the RF and store checks live in Execute.
func (a *WelcomeAction) ShouldHandle(pkt *mesh.Packet) bool {
	return pkt != nil
}

// Execute implements the Action interface
func (a *WelcomeAction) Execute(ctx context.Context, in Inputs) error {
	log := a.logger.WithField("action", a.Name())

	if in.Packet == nil || in.Store == nil {
		log.Debug("Missing packet or store, nothing to do")
		return nil
	}

	from := in.Packet.From
	if from == 0 || from == in.Self {
		return nil
	}

	// Must have been heard directly over radio, not relayed via MQTT.
	if !in.Packet.DirectRF() {
		log.WithField("node_id", from).Debug("Ignoring relayed packet")
		return nil
	}

	seen, err := in.Store.Exists(from)
	if err != nil {
		return fmt.Errorf("failed to check node %d: %w", from, err)
	}
	if seen {
		log.WithField("node_id", from).Debug("Node already welcomed")
		return nil
	}

	log.WithField("node_id", from).Info("New RF node heard, sending welcome message")

	err = Retry(ctx, a.options.SendAttempts, a.options.SendBaseDelay, func() error {
		return in.Conn.SendText(ctx, from, a.options.Message)
	})
	if err != nil {
		return fmt.Errorf("failed to send welcome to node %d: %w", from, err)
	}

	raw, err := json.Marshal(in.Packet)
	if err != nil {
		return fmt.Errorf("failed to encode packet for node %d: %w", from, err)
	}
	if err := in.Store.Insert(from, raw); err != nil {
		return fmt.Errorf("failed to record node %d: %w", from, err)
	}
	return nil
}

// Info implements the Describer capability
func (a *WelcomeAction) Info() Info {
	return Info{
		Name:        "Welcome Message Sender",
		Description: "Sends welcome messages to new RF nodes",
	}
}
