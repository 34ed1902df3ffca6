package supervisor

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/lisanmuaddib/meshbot-go/pkg/dispatch"
	"github.com/lisanmuaddib/meshbot-go/pkg/interfaces/mesh"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTickInterval drives time-based action dispatch.
	DefaultTickInterval = time.Second
	// DefaultHeartbeatInterval is the liveness probe cadence.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultReconnectBackoff is the base delay between reconnect attempts.
	DefaultReconnectBackoff = 30 * time.Second

	// maxBackoffMultiplier caps the exponential backoff growth.
	maxBackoffMultiplier = 8
)

// Dialer establishes a fresh device connection.
type Dialer func(ctx context.Context) (mesh.Transport, error)

// BackoffFunc returns the delay before reconnect attempt n (1-based).
type BackoffFunc func(attempt int) time.Duration

// Config holds the supervisor's collaborators and cadences.
type Config struct {
	Dialer     Dialer
	Dispatcher *dispatch.Dispatcher
	Logger     *logrus.Logger

	// StoreCloser, when set, is closed during graceful shutdown after the
	// transport.
	StoreCloser io.Closer

	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	Backoff           BackoffFunc

	// OnStateChange, when set, observes every state transition.
	OnStateChange func(State)
}

// NewConfigFromEnv builds a Config with cadences taken from the
// environment. Dialer and Dispatcher must be filled in by the caller.
func NewConfigFromEnv() Config {
	tick := durationFromEnv("TICK_INTERVAL_SECONDS", DefaultTickInterval)
	heartbeat := durationFromEnv("HEARTBEAT_INTERVAL_SECONDS", DefaultHeartbeatInterval)
	backoff := durationFromEnv("RECONNECT_BACKOFF_SECONDS", DefaultReconnectBackoff)

	return Config{
		TickInterval:      tick,
		HeartbeatInterval: heartbeat,
		Backoff:           ExponentialBackoff(backoff),
	}
}

// ExponentialBackoff doubles the base delay per attempt, capped at
// maxBackoffMultiplier times the base.
func ExponentialBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		multiplier := 1
		for i := 1; i < attempt && multiplier < maxBackoffMultiplier; i++ {
			multiplier *= 2
		}
		return base * time.Duration(multiplier)
	}
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
