// Package supervisor owns the device connection lifecycle: connect,
// subscribe, heartbeat, detect failure, reconnect with backoff.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lisanmuaddib/meshbot-go/pkg/dispatch"
	"github.com/lisanmuaddib/meshbot-go/pkg/interfaces/mesh"
	"github.com/sirupsen/logrus"
)

// Supervisor drives the connection state machine and, while connected, the
// periodic tick and heartbeat loops.
type Supervisor struct {
	config Config
	logger *logrus.Logger

	mu    sync.Mutex
	state State
}

// New validates the config and creates a supervisor.
func New(config Config) (*Supervisor, error) {
	if config.Dialer == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if config.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if config.Backoff == nil {
		config.Backoff = ExponentialBackoff(DefaultReconnectBackoff)
	}

	return &Supervisor{
		config: config,
		logger: config.Logger,
	}, nil
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   to.String(),
	}).Debug("Connection state changed")

	if s.config.OnStateChange != nil {
		s.config.OnStateChange(to)
	}
}

// Run cycles the connection state machine until ctx is canceled. All
// failure categories short of shutdown are retried with backoff; the
// returned error is ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	s.transition(StateDisconnected)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return s.shutdown(nil, ctx.Err())
		}

		s.transition(StateConnecting)
		log := s.logger.WithField("session_id", uuid.New().String())
		log.Info("Connecting to mesh device")

		transport, err := s.config.Dialer(ctx)
		if err != nil {
			s.transition(StateDisconnected)
			attempt++
			wait := s.config.Backoff(attempt)
			log.WithError(err).WithField("backoff", wait.String()).Warn("Connection failed, retrying")
			if !s.sleep(ctx, wait) {
				return s.shutdown(nil, ctx.Err())
			}
			continue
		}
		attempt = 0

		self := transport.NodeNum()
		log = log.WithField("node_id", self)
		log.Info("Connected to mesh device")

		s.config.Dispatcher.Bind(transport, self)
		transport.Subscribe(func(pkt *mesh.Packet) {
			s.config.Dispatcher.Dispatch(ctx, dispatch.PacketEvent(pkt))
		})
		s.transition(StateConnected)

		err = s.connectedLoop(ctx, transport)
		if ctx.Err() != nil {
			return s.shutdown(transport, ctx.Err())
		}

		s.transition(StateDegraded)
		log.WithError(err).Warn("Connection degraded, tearing down")
		s.teardown(transport)
		s.transition(StateDisconnected)

		attempt++
		wait := s.config.Backoff(attempt)
		log.WithField("backoff", wait.String()).Info("Reconnecting after backoff")
		if !s.sleep(ctx, wait) {
			return s.shutdown(nil, ctx.Err())
		}
	}
}

// connectedLoop dispatches ticks and probes liveness on independent timers.
// Returns the transport error that broke the connection, or ctx.Err().
func (s *Supervisor) connectedLoop(ctx context.Context, transport mesh.Transport) error {
	tick := time.NewTicker(s.config.TickInterval)
	defer tick.Stop()
	heartbeat := time.NewTicker(s.config.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick.C:
			s.config.Dispatcher.Dispatch(ctx, dispatch.TickEvent(now))
		case <-heartbeat.C:
			if err := transport.Heartbeat(); err != nil {
				return fmt.Errorf("heartbeat failed: %w", err)
			}
		}
	}
}

// teardown detaches the dispatcher and closes the stale transport.
// Failures while closing an already-broken handle are expected.
func (s *Supervisor) teardown(transport mesh.Transport) {
	s.config.Dispatcher.Unbind()
	transport.Unsubscribe()
	if err := transport.Close(); err != nil {
		s.logger.WithError(err).Debug("Ignored error closing broken connection")
	}
}

// shutdown performs the graceful exit sequence: stop dispatch, close the
// transport, close persistence. Each step is best effort.
func (s *Supervisor) shutdown(transport mesh.Transport, cause error) error {
	s.logger.Info("Shutting down supervisor")

	s.config.Dispatcher.Unbind()

	if transport != nil {
		transport.Unsubscribe()
		if err := transport.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close transport during shutdown")
		}
	}

	if s.config.StoreCloser != nil {
		if err := s.config.StoreCloser.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close store during shutdown")
		}
	}

	if s.State() != StateDisconnected {
		s.transition(StateDisconnected)
	}
	return cause
}

// sleep waits for the given duration, returning false when ctx is canceled
// first.
func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
