package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofrs/flock"
	"go.uber.org/multierr"

	"scancart/internal/cart"
	"scancart/internal/catalog"
	"scancart/internal/classifier"
	"scancart/internal/config"
	"scancart/internal/detection"
	"scancart/internal/devicemon"
	"scancart/internal/logging"
	"scancart/internal/notifications"
	"scancart/internal/payment"
	"scancart/internal/receipts"
	"scancart/internal/scanner"
)

var (
	// ErrEmptyCart is returned by Checkout when there is nothing to pay for.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCheckoutInProgress is returned by Checkout while a payment is pending.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	// ErrNoCheckout is returned when no checkout session exists.
	ErrNoCheckout = errors.New("no checkout session")
)

const notifyTimeout = 15 * time.Second

// Option customizes kiosk construction.
type Option func(*options)

type options struct {
	classifier classifier.Classifier
	clock      clock.Clock
	notifier   notifications.Service
	noReceipts bool
	interval   *time.Duration
}

// WithClassifier replaces the HTTP classifier client.
func WithClassifier(c classifier.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithClock sets the time source for the debouncer, scanner, and payments.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithFrameInterval overrides classifier.frame_interval_ms. Replays driven by
// a mock clock need zero so the loop never parks on a timer nobody advances.
func WithFrameInterval(d time.Duration) Option {
	return func(o *options) { o.interval = &d }
}

// WithNotifier replaces the ntfy-backed notifier.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// WithoutReceipts disables the receipt journal regardless of config.
func WithoutReceipts() Option {
	return func(o *options) { o.noReceipts = true }
}

// Kiosk owns the detection pipeline, the cart, and checkout for one camera
// session. Only one kiosk may run per state directory.
type Kiosk struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  clock.Clock

	catalog   *catalog.Catalog
	ledger    *cart.Ledger
	debouncer *detection.Debouncer
	scanner   *scanner.Scanner
	payments  *payment.Simulator
	receipts  *receipts.Store
	notifier  notifications.Service
	camera    *devicemon.Monitor

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	pending sync.WaitGroup

	mu       sync.Mutex
	checkout *checkoutState
	closed   bool

	closeOnce sync.Once
	closeErr  error
}

// New builds a kiosk from cfg. Nothing runs until Start or Scan.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Kiosk, error) {
	if cfg == nil {
		return nil, errors.New("kiosk requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}

	cat, err := catalog.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if cat.Len() == 0 {
		return nil, errors.New("catalog is empty")
	}

	k := &Kiosk{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "kiosk"),
		clock:    o.clock,
		catalog:  cat,
		ledger:   cart.NewLedger(cat),
		lockPath: cfg.LockPath(),
	}
	k.lock = flock.New(k.lockPath)

	k.debouncer = detection.NewDebouncer(cat, k.ledger, logger, detection.Options{
		Threshold:      cfg.Detection.Threshold,
		Cooldown:       cfg.Cooldown(),
		SentinelLabels: cfg.Detection.SentinelLabels,
	}, detection.WithClock(o.clock))

	source := o.classifier
	if source == nil {
		source = classifier.NewHTTPClient(classifier.HTTPConfig{
			URL:            cfg.Classifier.URL,
			Device:         cfg.Camera.Device,
			TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
		})
	}
	interval := cfg.FrameInterval()
	if o.interval != nil {
		interval = *o.interval
	}
	k.scanner = scanner.New(source, k.debouncer, logger, scanner.Options{
		FrameInterval: interval,
		Clock:         o.clock,
	})
	k.scanner.OnDecision(k.onDecision)
	k.scanner.OnUnavailable(k.onUnavailable)

	k.payments = payment.NewSimulator(payment.Options{
		Delay:          cfg.PaymentDelay(),
		CurrencySymbol: cfg.Payment.CurrencySymbol,
		Clock:          o.clock,
	}, logger)

	k.notifier = o.notifier
	if k.notifier == nil {
		k.notifier = notifications.NewService(cfg)
	}

	if cfg.Receipts.Enabled && !o.noReceipts {
		store, err := receipts.Open(context.Background(), cfg.Receipts.Path)
		if err != nil {
			return nil, fmt.Errorf("open receipts: %w", err)
		}
		k.receipts = store
	}

	if cfg.Camera.Monitor {
		k.camera = devicemon.New(cfg.Camera.Device, logger, nil)
	}
	return k, nil
}

// Start acquires the instance lock and launches the scanner and camera monitor.
func (k *Kiosk) Start(ctx context.Context) error {
	if k.running.Load() {
		return errors.New("kiosk already running")
	}
	if err := k.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := k.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another scancart instance is already running (lock %s)", k.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := k.scanner.Start(runCtx); err != nil {
		cancel()
		_ = k.lock.Unlock()
		return fmt.Errorf("start scanner: %w", err)
	}
	if err := k.camera.Start(runCtx); err != nil {
		k.logger.Warn("camera monitor failed to start", logging.Error(err))
	}

	k.mu.Lock()
	k.cancel = cancel
	k.mu.Unlock()
	k.running.Store(true)

	k.logger.Info("kiosk started",
		logging.String("lock", k.lockPath),
		logging.Int("catalog_items", k.catalog.Len()),
		logging.String(logging.FieldEventType, "kiosk_started"),
	)
	return nil
}

// Scan runs the detection loop on the calling goroutine without taking the
// instance lock. It returns when ctx ends or the classifier is exhausted.
func (k *Kiosk) Scan(ctx context.Context) error {
	return k.scanner.Run(ctx)
}

// Stop halts scanning, cancels a pending payment, and releases the lock.
func (k *Kiosk) Stop() {
	if !k.running.Load() {
		return
	}
	k.scanner.Stop()
	k.camera.Stop()

	k.mu.Lock()
	if k.checkout != nil {
		k.checkout.session.Cancel()
	}
	cancel := k.cancel
	k.cancel = nil
	k.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if err := k.lock.Unlock(); err != nil {
		k.logger.Warn("failed to release kiosk lock", logging.Error(err))
	}
	k.running.Store(false)
	k.logger.Info("kiosk stopped", logging.String(logging.FieldEventType, "kiosk_stopped"))
}

// Close stops the kiosk, waits for in-flight notifications and receipt
// writes, and closes the receipt journal. Later calls return the first result.
func (k *Kiosk) Close() error {
	k.closeOnce.Do(func() {
		k.Stop()
		k.scanner.Stop()

		k.mu.Lock()
		k.closed = true
		if k.checkout != nil {
			k.checkout.session.Cancel()
		}
		k.mu.Unlock()
		k.pending.Wait()

		var err error
		if k.receipts != nil {
			err = multierr.Append(err, k.receipts.Close())
		}
		err = multierr.Append(err, k.lock.Close())
		k.closeErr = err
	})
	return k.closeErr
}

// Running reports whether Start has succeeded and Stop has not been called.
func (k *Kiosk) Running() bool {
	return k.running.Load()
}

// LockPath returns the single-instance lock file.
func (k *Kiosk) LockPath() string {
	return k.lockPath
}

// LogPath returns the JSON log file under the log directory.
func (k *Kiosk) LogPath() string {
	return filepath.Join(k.cfg.Paths.LogDir, logging.LogFileName)
}

// CurrentDetection returns the last accepted label, possibly empty.
func (k *Kiosk) CurrentDetection() string {
	return k.scanner.CurrentDetection()
}

// CartSnapshot returns the cart lines in first-scan order with their total.
func (k *Kiosk) CartSnapshot() cart.Snapshot {
	return k.ledger.Snapshot()
}

// AddItem records one scan of label directly, bypassing the debouncer. It
// fails with ErrCheckoutInProgress while a payment is pending.
func (k *Kiosk) AddItem(label string) (cart.Line, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.pendingLocked() {
		return cart.Line{}, ErrCheckoutInProgress
	}
	return k.ledger.AddItem(label)
}

// ClearCart empties the cart and returns how many lines were removed.
func (k *Kiosk) ClearCart() int {
	removed := k.ledger.Clear()
	k.logger.Info("cart cleared",
		logging.Int("lines", removed),
		logging.String(logging.FieldEventType, "cart_cleared"),
	)
	return removed
}

// Total returns the current cart total.
func (k *Kiosk) Total() int64 {
	return k.ledger.Total()
}

// Catalog returns every product sorted by label.
func (k *Kiosk) Catalog() []catalog.Entry {
	return k.catalog.Entries()
}

// OnDecision registers fn for every processed frame. It must be called
// before Start or Scan.
func (k *Kiosk) OnDecision(fn func(detection.Decision)) {
	k.scanner.OnDecision(fn)
}

// Stats returns the scanner frame counters.
func (k *Kiosk) Stats() scanner.Stats {
	return k.scanner.Stats()
}

// FormatAmount renders amount with the configured currency symbol.
func (k *Kiosk) FormatAmount(amount int64) string {
	return cart.FormatAmount(k.cfg.Payment.CurrencySymbol, amount)
}

// Currency returns the configured currency symbol.
func (k *Kiosk) Currency() string {
	return k.cfg.Payment.CurrencySymbol
}

// TestNotification sends a test notification synchronously.
func (k *Kiosk) TestNotification(ctx context.Context) error {
	return k.notifier.TestNotification(ctx)
}

func (k *Kiosk) onDecision(d detection.Decision) {
	if d.Outcome != detection.OutcomeUnknown {
		return
	}
	label := d.Label
	k.notify("unknown_item", func(ctx context.Context) error {
		return k.notifier.NotifyUnknownItem(ctx, label)
	})
}

func (k *Kiosk) onUnavailable(err error) {
	k.notify("classifier_unavailable", func(ctx context.Context) error {
		return k.notifier.NotifyClassifierUnavailable(ctx, err)
	})
}

// notify sends in the background so slow ntfy requests never stall the
// scanner loop or a payment callback.
func (k *Kiosk) notify(event string, send func(ctx context.Context) error) {
	k.pending.Add(1)
	go func() {
		defer k.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			logging.WarnWithContext(k.logger, "notification failed", "notification_failed",
				logging.String("notification", event),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "operator not alerted"),
			)
		}
	}()
}
