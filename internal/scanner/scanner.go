package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"scancart/internal/classifier"
	"scancart/internal/detection"
	"scancart/internal/logging"
)

// Status describes the loop lifecycle.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusDegraded Status = "degraded"
	StatusPaused   Status = "paused"
	StatusStopped  Status = "stopped"
)

// DefaultErrorPause is the minimum wait before the next request after a
// classify error.
const DefaultErrorPause = 250 * time.Millisecond

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("scanner already running")

// Stats counts frames by outcome since the loop started.
type Stats struct {
	Frames         int64 `json:"frames"`
	Empty          int64 `json:"empty"`
	BelowThreshold int64 `json:"below_threshold"`
	Sentinel       int64 `json:"sentinel"`
	Cooldown       int64 `json:"cooldown"`
	Scanned        int64 `json:"scanned"`
	Unknown        int64 `json:"unknown"`
	ClassifyErrors int64 `json:"classify_errors"`
	// Paused counts frames that arrived after Pause and were discarded.
	Paused         int64 `json:"paused"`
}

func (s *Stats) record(outcome detection.Outcome) {
	s.Frames++
	switch outcome {
	case detection.OutcomeEmpty:
		s.Empty++
	case detection.OutcomeBelowThreshold:
		s.BelowThreshold++
	case detection.OutcomeSentinel:
		s.Sentinel++
	case detection.OutcomeCooldown:
		s.Cooldown++
	case detection.OutcomeScanned:
		s.Scanned++
	case detection.OutcomeUnknown:
		s.Unknown++
	}
}

// Options tune the loop.
type Options struct {
	// FrameInterval is the pause after each processed frame. Zero requests
	// the next frame immediately.
	FrameInterval time.Duration
	// ErrorPause is the minimum wait after a failed classify. Zero selects
	// DefaultErrorPause.
	ErrorPause    time.Duration
	Clock         clock.Clock
}

// Scanner polls a classifier one frame at a time and feeds each result to
// the debouncer. A frame is requested only after the previous one has been
// fully processed.
type Scanner struct {
	classifier classifier.Classifier
	debouncer  *detection.Debouncer
	logger     *slog.Logger
	clock      clock.Clock
	interval   time.Duration
	errorPause time.Duration

	mu            sync.Mutex
	current       string
	stats         Stats
	status        Status
	lastErr       error
	onDecision    []func(detection.Decision)
	onUnavailable []func(error)

	// pauseMu is held while a frame runs through the debouncer, so Pause
	// returns only once no frame can still reach the cart.
	pauseMu sync.Mutex
	resume  chan struct{}

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a scanner. A nil logger discards diagnostics.
func New(c classifier.Classifier, d *detection.Debouncer, logger *slog.Logger, opts Options) *Scanner {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	interval := opts.FrameInterval
	if interval < 0 {
		interval = 0
	}
	errorPause := opts.ErrorPause
	if errorPause <= 0 {
		errorPause = DefaultErrorPause
	}
	return &Scanner{
		classifier: c,
		debouncer:  d,
		logger:     logging.NewComponentLogger(logger, "scanner"),
		clock:      clk,
		interval:   interval,
		errorPause: errorPause,
		status:     StatusIdle,
	}
}

// OnDecision registers fn to be called after every processed frame. Hooks
// run on the loop goroutine and must not block.
func (s *Scanner) OnDecision(fn func(detection.Decision)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onDecision = append(s.onDecision, fn)
	s.mu.Unlock()
}

// OnUnavailable registers fn to be called when classifier initialization fails.
func (s *Scanner) OnUnavailable(fn func(error)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onUnavailable = append(s.onUnavailable, fn)
	s.mu.Unlock()
}

// CurrentDetection returns the last accepted label, known or unknown. It is
// empty until the first accepted frame.
func (s *Scanner) CurrentDetection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Stats returns a copy of the frame counters.
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Status reports the loop lifecycle state.
func (s *Scanner) Status() Status {
	paused := s.Paused()
	s.mu.Lock()
	defer s.mu.Unlock()
	if paused && s.status == StatusRunning {
		return StatusPaused
	}
	return s.status
}

// Pause stops frame requests until Resume. A frame already in flight is
// discarded when it returns. Pause waits for a frame that is being
// processed to finish.
func (s *Scanner) Pause() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.resume == nil {
		s.resume = make(chan struct{})
		s.logger.Info("scanner paused", logging.String(logging.FieldEventType, "scanner_paused"))
	}
}

// Resume restarts frame requests after Pause. It is a no-op when not paused.
func (s *Scanner) Resume() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.resume != nil {
		close(s.resume)
		s.resume = nil
		s.logger.Info("scanner resumed", logging.String(logging.FieldEventType, "scanner_resumed"))
	}
}

// Paused reports whether Pause is in effect.
func (s *Scanner) Paused() bool {
	return s.resumeSignal() != nil
}

func (s *Scanner) resumeSignal() <-chan struct{} {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.resume == nil {
		return nil
	}
	return s.resume
}

// LastError returns the classifier initialization error when degraded.
func (s *Scanner) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Run drives the loop until ctx is cancelled or the classifier reports
// ErrExhausted. Debouncer state lives for the duration of the call. When
// classifier initialization fails the scanner degrades: no frame is ever
// requested and Run waits for cancellation.
func (s *Scanner) Run(ctx context.Context) error {
	s.setStatus(StatusRunning)
	defer s.setStatus(StatusStopped)

	if init, ok := s.classifier.(classifier.Initializer); ok {
		if err := init.Init(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.degrade(err)
			<-ctx.Done()
			return nil
		}
	}

	s.logger.Info("scanner started",
		logging.Duration("frame_interval", s.interval),
		logging.String(logging.FieldEventType, "scanner_started"),
	)

	state := &detection.State{}
	failing := false
	for {
		if ctx.Err() != nil {
			s.logger.Info("scanner stopped", logging.String(logging.FieldEventType, "scanner_stopped"))
			return nil
		}

		if resume := s.resumeSignal(); resume != nil {
			select {
			case <-ctx.Done():
			case <-resume:
			}
			continue
		}

		wait := s.interval
		frame, err := s.classifier.Classify(ctx)
		switch {
		case errors.Is(err, classifier.ErrExhausted):
			s.logger.Info("classifier exhausted", logging.String(logging.FieldEventType, "scanner_exhausted"))
			return nil
		case err != nil && ctx.Err() != nil:
			continue
		case err != nil:
			s.classifyFailed(err, failing)
			failing = true
			if wait < s.errorPause {
				wait = s.errorPause
			}
		default:
			if failing {
				s.logger.Info("classifier recovered", logging.String(logging.FieldEventType, "classifier_recovered"))
				failing = false
			}
			if decision, ok := s.process(state, frame); ok {
				s.handle(decision)
			}
		}

		if wait > 0 {
			timer := s.clock.Timer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}
}

// Start launches Run on a new goroutine.
func (s *Scanner) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return ErrAlreadyRunning
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go func() {
		defer close(done)
		if err := s.Run(runCtx); err != nil {
			s.logger.Error("scanner exited", logging.Error(err))
		}
	}()
	return nil
}

// Stop cancels a running loop and waits for it to exit. It is safe to call
// more than once and before Start.
func (s *Scanner) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the goroutine launched by Start exits. It is nil
// before Start.
func (s *Scanner) Done() <-chan struct{} {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.done
}

func (s *Scanner) process(state *detection.State, frame []detection.Prediction) (detection.Decision, bool) {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.resume != nil {
		s.mu.Lock()
		s.stats.Paused++
		s.mu.Unlock()
		return detection.Decision{}, false
	}
	return s.debouncer.Process(state, frame), true
}

func (s *Scanner) handle(decision detection.Decision) {
	s.mu.Lock()
	s.stats.record(decision.Outcome)
	if decision.Outcome.Accepted() {
		s.current = decision.Label
	}
	hooks := append([]func(detection.Decision){}, s.onDecision...)
	s.mu.Unlock()

	if decision.Outcome != detection.OutcomeEmpty && decision.Outcome != detection.OutcomeBelowThreshold {
		s.logger.Debug("frame decision",
			logging.String("outcome", string(decision.Outcome)),
			logging.String(logging.FieldLabel, decision.Label),
			logging.Float64("probability", decision.Probability),
		)
	}
	for _, hook := range hooks {
		hook(decision)
	}
}

func (s *Scanner) classifyFailed(err error, alreadyFailing bool) {
	s.mu.Lock()
	s.stats.ClassifyErrors++
	s.mu.Unlock()
	if alreadyFailing {
		s.logger.Debug("classify failed", logging.Error(err))
		return
	}
	logging.WarnWithContext(s.logger, "classify failed; frame skipped", "classify_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the classifier sidecar"),
		logging.String(logging.FieldImpact, "no detection for this frame"),
	)
}

func (s *Scanner) degrade(err error) {
	s.mu.Lock()
	s.status = StatusDegraded
	s.lastErr = err
	hooks := append([]func(error){}, s.onUnavailable...)
	s.mu.Unlock()

	logging.ErrorWithContext(s.logger, "classifier unavailable; scanning disabled", "classifier_unavailable",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check classifier.url and the camera, then restart"),
		logging.String(logging.FieldImpact, "no items will be detected"),
	)
	for _, hook := range hooks {
		hook(err)
	}
}

func (s *Scanner) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	if status == StatusRunning {
		s.lastErr = nil
	}
}
