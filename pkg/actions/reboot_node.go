package actions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RebootAction restarts the device on a maintenance interval. The first
// interval after startup is skipped so a freshly started agent does not
// immediately reboot its device.
type RebootAction struct {
	logger   *logrus.Logger
	interval time.Duration

	mu      sync.Mutex
	lastRun time.Time
}

// NewRebootAction creates a new maintenance rebooter.
func NewRebootAction(logger *logrus.Logger, interval time.Duration) *RebootAction {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &RebootAction{logger: logger, interval: interval}
}

// Name implements the Action interface
func (a *RebootAction) Name() string {
	return "reboot_node"
}

// ShouldRun implements the TickHandler capability
func (a *RebootAction) ShouldRun(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Arm the timer on the first check instead of firing at startup.
	if a.lastRun.IsZero() {
		a.lastRun = now
		return false
	}
	return now.Sub(a.lastRun) >= a.interval
}

// Execute implements the Action interface
func (a *RebootAction) Execute(ctx context.Context, in Inputs) error {
	// Advance the timer even on failure to avoid reboot spam.
	a.mu.Lock()
	a.lastRun = time.Now()
	a.mu.Unlock()

	a.logger.WithField("action", a.Name()).Info("Initiating maintenance reboot")

	if err := in.Conn.Reboot(); err != nil {
		return fmt.Errorf("failed to reboot node: %w", err)
	}

	a.logger.WithField("action", a.Name()).Info("Reboot command sent, device may briefly disconnect")
	return nil
}

// Info implements the Describer capability
func (a *RebootAction) Info() Info {
	return Info{
		Name:        "Node Rebooter",
		Description: "Reboots the node for maintenance",
		Interval:    a.interval,
	}
}
