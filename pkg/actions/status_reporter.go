package actions

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusReporterAction periodically logs node database statistics. Unlike
// the maintenance actions it also fires on the first tick after startup.
type StatusReporterAction struct {
	logger   *logrus.Logger
	interval time.Duration

	mu      sync.Mutex
	lastRun time.Time
}

// NewStatusReporterAction creates a new status reporter.
func NewStatusReporterAction(logger *logrus.Logger, interval time.Duration) *StatusReporterAction {
	if interval <= 0 {
		interval = time.Hour
	}
	return &StatusReporterAction{logger: logger, interval: interval}
}

// Name implements the Action interface
func (a *StatusReporterAction) Name() string {
	return "status_reporter"
}

// ShouldRun implements the TickHandler capability
func (a *StatusReporterAction) ShouldRun(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return now.Sub(a.lastRun) >= a.interval
}

// Execute implements the Action interface
func (a *StatusReporterAction) Execute(ctx context.Context, in Inputs) error {
	a.mu.Lock()
	a.lastRun = time.Now()
	a.mu.Unlock()

	nodes := in.Conn.Nodes()

	var favorites, viaMQTT int
	for _, node := range nodes {
		if node.IsFavorite {
			favorites++
		}
		if node.ViaMQTT {
			viaMQTT++
		}
	}

	a.logger.WithFields(logrus.Fields{
		"action":          a.Name(),
		"node_id":         in.Self,
		"total_nodes":     len(nodes),
		"favorite_nodes":  favorites,
		"mqtt_nodes":      viaMQTT,
		"direct_rf_nodes": len(nodes) - viaMQTT,
	}).Info("Status report")

	return nil
}

// Info implements the Describer capability
func (a *StatusReporterAction) Info() Info {
	return Info{
		Name:        "Status Reporter",
		Description: "Reports bot and node statistics",
		Interval:    a.interval,
	}
}
