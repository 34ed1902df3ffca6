package actions

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// staleAfter is how long a node may stay unheard before the cleaner
// removes it from the device's node database.
const staleAfter = 6 * 24 * time.Hour

// CleanNodeDBAction sweeps the device's node database, removing MQTT-relayed
// and stale nodes while keeping favorites and the device itself.
type CleanNodeDBAction struct {
	logger   *logrus.Logger
	interval time.Duration

	mu      sync.Mutex
	lastRun time.Time
}

// NewCleanNodeDBAction creates a new node database cleaner.
func NewCleanNodeDBAction(logger *logrus.Logger, interval time.Duration) *CleanNodeDBAction {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &CleanNodeDBAction{logger: logger, interval: interval}
}

// Name implements the Action interface
func (a *CleanNodeDBAction) Name() string {
	return "clean_nodedb"
}

// ShouldRun implements the TickHandler capability
func (a *CleanNodeDBAction) ShouldRun(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lastRun.IsZero() {
		a.lastRun = now
		return false
	}
	return now.Sub(a.lastRun) >= a.interval
}

// Execute implements the Action interface
func (a *CleanNodeDBAction) Execute(ctx context.Context, in Inputs) error {
	a.mu.Lock()
	a.lastRun = time.Now()
	a.mu.Unlock()

	log := a.logger.WithField("action", a.Name())
	nodes := in.Conn.Nodes()
	now := time.Now()

	var kept, removed, failed int
	for _, node := range nodes {
		if node.Num == in.Self || node.IsFavorite {
			kept++
			continue
		}

		stale := node.LastHeard.IsZero() || now.Sub(node.LastHeard) > staleAfter
		if !node.ViaMQTT && !stale {
			kept++
			continue
		}

		if err := in.Conn.RemoveNode(node.Num); err != nil {
			failed++
			log.WithError(err).WithField("node_id", node.Num).Warn("Failed to remove node")
			continue
		}
		removed++
		log.WithFields(logrus.Fields{
			"node_id":   node.Num,
			"node_name": node.LongName,
			"via_mqtt":  node.ViaMQTT,
		}).Debug("Removed node from device database")
	}

	log.WithFields(logrus.Fields{
		"total":   len(nodes),
		"kept":    kept,
		"removed": removed,
		"failed":  failed,
	}).Info("Node database cleanup complete")

	return nil
}

// Info implements the Describer capability
func (a *CleanNodeDBAction) Info() Info {
	return Info{
		Name:        "Node Database Cleaner",
		Description: "Removes MQTT and stale nodes, keeping favorites",
		Interval:    a.interval,
	}
}
