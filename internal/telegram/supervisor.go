package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	config "github.com/wirefox/gramhook-server/internal/config"
	errs "github.com/wirefox/gramhook-server/internal/err"
)

// State of the platform session, owned and mutated only by the supervisor.
type State int32

const (
	StateDisconnected State = iota
	StateAuthenticating
	StateConnected
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Session is the slice of the platform client the supervisor drives.
// Start blocks until Stop is called or the update loop dies on its own.
type Session interface {
	Start()
	Stop()
	Healthy(ctx context.Context) error
}

// DialFunc performs the handshake and returns a live session.
// Each call builds a fresh session, re-registering event handlers and
// resuming the poller from the persisted offset.
type DialFunc func() (Session, error)

const (
	defaultReconnectDelay   = 5 * time.Second
	defaultMaxReconnects    = 10
	defaultWatchdogInterval = 30 * time.Second

	probeTimeout = 10 * time.Second
)

// Supervisor keeps one session alive, redialing with a fixed delay after
// handshake failures and drops. The attempt counter resets only when a
// handshake succeeds; once it hits the cap the supervisor gives up for
// good and reports exhaustion.
type Supervisor struct {
	dial   DialFunc
	logger *slog.Logger

	delay       time.Duration
	maxAttempts int
	watchdog    time.Duration

	state atomic.Int32
}

func NewSupervisor(config *config.TelegramConfig, dial DialFunc, logger *slog.Logger) *Supervisor {
	delay := config.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}

	maxAttempts := config.MaxReconnects
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxReconnects
	}

	watchdog := config.WatchdogInterval
	if watchdog <= 0 {
		watchdog = defaultWatchdogInterval
	}

	return &Supervisor{
		dial:        dial,
		logger:      logger,
		delay:       delay,
		maxAttempts: maxAttempts,
		watchdog:    watchdog,
	}
}

// State reports the current session state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Ready reports whether a session is currently connected.
func (s *Supervisor) Ready() bool {
	return s.State() == StateConnected
}

// Run drives the session until the context is canceled or the reconnect
// attempts are used up. Context cancellation is a clean shutdown and
// returns nil; exhaustion returns ErrorReconnectExhausted.
func (s *Supervisor) Run(ctx context.Context) error {
	failures := 0

	for {
		if ctx.Err() != nil {
			s.setState(StateDisconnected)

			return nil
		}

		s.setState(StateAuthenticating)

		sess, err := s.dial()
		if err != nil {
			failures++
			s.logger.Warn("session handshake failed",
				slog.Int("attempt", failures),
				slog.Int("max_attempts", s.maxAttempts),
				slog.String("error", err.Error()))

			if failures >= s.maxAttempts {
				s.setState(StateExhausted)

				return errs.ErrorReconnectExhausted
			}

			s.setState(StateDisconnected)

			if !s.pause(ctx) {
				return nil
			}

			continue
		}

		failures = 0
		s.setState(StateConnected)
		s.logger.Info("session connected")

		dropErr := s.supervise(ctx, sess)
		s.setState(StateDisconnected)

		if ctx.Err() != nil {
			return nil
		}

		s.logger.Warn("session lost", slog.String("error", dropErr.Error()))

		if !s.pause(ctx) {
			return nil
		}
	}
}

// supervise runs one connected session to completion. The long poller
// retries transport errors internally and never reports them, so a
// periodic liveness probe is the only drop signal available.
func (s *Supervisor) supervise(ctx context.Context, sess Session) error {
	stopped := make(chan struct{})

	go func() {
		sess.Start()
		close(stopped)
	}()

	ticker := time.NewTicker(s.watchdog)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sess.Stop()
			<-stopped

			return ctx.Err()
		case <-stopped:
			return errs.ErrorSessionClosed
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			err := sess.Healthy(probeCtx)

			cancel()

			if err != nil {
				sess.Stop()
				<-stopped

				return fmt.Errorf("liveness probe failed: %w", err)
			}
		}
	}
}

// pause waits out the reconnect delay, reporting false if the context
// was canceled first.
func (s *Supervisor) pause(ctx context.Context) bool {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Supervisor) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		s.logger.Debug("session state changed",
			slog.String("from", prev.String()),
			slog.String("to", next.String()))
	}
}
