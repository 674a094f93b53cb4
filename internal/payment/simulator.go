package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"scancart/internal/logging"
)

// ErrInvalidAmount is returned by Begin for non-positive totals.
var ErrInvalidAmount = errors.New("payment amount must be positive")

// State is the lifecycle of a payment session.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Options configure the simulator.
type Options struct {
	Delay          time.Duration
	CurrencySymbol string
	Clock          clock.Clock
}

// Simulator stands in for a real payment terminal: every session completes
// on its own after a fixed delay unless it is cancelled first.
type Simulator struct {
	delay  time.Duration
	symbol string
	clock  clock.Clock
	logger *slog.Logger
}

// NewSimulator constructs a simulator. A nil logger discards diagnostics.
func NewSimulator(opts Options, logger *slog.Logger) *Simulator {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}
	return &Simulator{
		delay:  delay,
		symbol: opts.CurrencySymbol,
		clock:  clk,
		logger: logging.NewComponentLogger(logger, "payment"),
	}
}

// Session is one in-flight payment.
type Session struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Payload   string    `json:"payload"`
	StartedAt time.Time `json:"started_at"`

	mu          sync.Mutex
	state       State
	completedAt time.Time
	timer       *clock.Timer
	clock       clock.Clock
}

// Begin opens a payment session for amount. onComplete is called once, on a
// timer goroutine, when the delay elapses without a Cancel. ctx only scopes
// logging; the session outlives the caller's request.
func (s *Simulator) Begin(ctx context.Context, amount int64, onComplete func(*Session)) (*Session, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	session := &Session{
		ID:        uuid.NewString(),
		Amount:    amount,
		Payload:   fmt.Sprintf("Payment for %s%d", s.symbol, amount),
		StartedAt: s.clock.Now(),
		state:     StatePending,
		clock:     s.clock,
	}
	logger := logging.WithContext(logging.WithSessionID(ctx, session.ID), s.logger)

	session.mu.Lock()
	session.timer = s.clock.AfterFunc(s.delay, func() {
		if !session.complete() {
			return
		}
		logger.Info("payment completed",
			logging.Int64("amount", amount),
			logging.String(logging.FieldEventType, "payment_completed"),
		)
		if onComplete != nil {
			onComplete(session)
		}
	})
	session.mu.Unlock()

	logger.Info("payment session started",
		logging.Int64("amount", amount),
		logging.Duration("delay", s.delay),
		logging.String(logging.FieldEventType, "payment_started"),
	)
	return session, nil
}

func (s *Session) complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePending {
		return false
	}
	s.state = StateCompleted
	s.completedAt = s.clock.Now()
	return true
}

// Cancel stops a pending session. It reports whether this call cancelled it;
// cancelling a completed or already cancelled session is a no-op.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePending {
		return false
	}
	s.state = StateCancelled
	if s.timer != nil {
		s.timer.Stop()
	}
	return true
}

// State returns the session lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CompletedAt returns when the payment completed, or the zero time.
func (s *Session) CompletedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedAt
}

// QRCode renders Payload as a square PNG of size pixels.
func (s *Session) QRCode(size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(s.Payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode payment qr: %w", err)
	}
	return png, nil
}
