package detection

import (
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"scancart/internal/cart"
	"scancart/internal/catalog"
	"scancart/internal/logging"
)

// Outcome classifies what Process did with a frame.
type Outcome string

const (
	OutcomeEmpty          Outcome = "empty"
	OutcomeBelowThreshold Outcome = "below_threshold"
	OutcomeSentinel       Outcome = "sentinel"
	OutcomeCooldown       Outcome = "cooldown"
	OutcomeScanned        Outcome = "scanned"
	OutcomeUnknown        Outcome = "unknown"
)

// Outcomes lists every outcome in pipeline order.
var Outcomes = []Outcome{
	OutcomeEmpty,
	OutcomeBelowThreshold,
	OutcomeSentinel,
	OutcomeCooldown,
	OutcomeScanned,
	OutcomeUnknown,
}

// Accepted reports whether the frame passed threshold, sentinel and cooldown
// checks. Accepted frames update the current detection label.
func (o Outcome) Accepted() bool {
	return o == OutcomeScanned || o == OutcomeUnknown
}

// Decision is the result of processing one frame.
type Decision struct {
	Outcome     Outcome   `json:"outcome"`
	Label       string    `json:"label,omitempty"`
	Probability float64   `json:"probability,omitempty"`
	At          time.Time `json:"at"`
	Line        cart.Line `json:"line,omitzero"`
}

// Options tune the debouncer.
type Options struct {
	// Threshold is exclusive: a top probability must be strictly greater.
	Threshold float64
	// Cooldown is exclusive: the same label is re-accepted only once strictly
	// more than Cooldown has passed since it was last accepted.
	Cooldown       time.Duration
	SentinelLabels []string
}

// DefaultOptions returns the kiosk defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:      0.98,
		Cooldown:       3000 * time.Millisecond,
		SentinelLabels: []string{"background", "nothing"},
	}
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithClock overrides the time source.
func WithClock(clk clock.Clock) Option {
	return func(d *Debouncer) {
		if clk != nil {
			d.clock = clk
		}
	}
}

// Debouncer turns per-frame classifications into cart additions.
type Debouncer struct {
	catalog   *catalog.Catalog
	ledger    *cart.Ledger
	logger    *slog.Logger
	clock     clock.Clock
	threshold float64
	cooldown  time.Duration
	sentinels map[string]struct{}
}

// NewDebouncer constructs a debouncer that prices against cat and records
// scans into ledger. A nil logger discards diagnostics.
func NewDebouncer(cat *catalog.Catalog, ledger *cart.Ledger, logger *slog.Logger, opts Options, options ...Option) *Debouncer {
	if opts.SentinelLabels == nil {
		opts.SentinelLabels = DefaultOptions().SentinelLabels
	}
	d := &Debouncer{
		catalog:   cat,
		ledger:    ledger,
		logger:    logging.NewComponentLogger(logger, "debouncer"),
		clock:     clock.New(),
		threshold: opts.Threshold,
		cooldown:  opts.Cooldown,
		sentinels: sentinelSet(opts.SentinelLabels),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Process runs one frame through the pipeline. state is read and written in
// place; only an accepted frame whose label is in the catalog changes it.
func (d *Debouncer) Process(state *State, frame []Prediction) Decision {
	now := d.clock.Now()
	top, ok := Top(frame)
	if !ok {
		return Decision{Outcome: OutcomeEmpty, At: now}
	}
	decision := Decision{Label: top.Label, Probability: top.Probability, At: now}

	if top.Probability <= d.threshold {
		decision.Outcome = OutcomeBelowThreshold
		return decision
	}
	if d.isSentinel(top.Label) {
		decision.Outcome = OutcomeSentinel
		return decision
	}
	if !d.accept(state, top.Label, now) {
		decision.Outcome = OutcomeCooldown
		return decision
	}

	if !d.catalog.Contains(top.Label) {
		decision.Outcome = OutcomeUnknown
		logging.WarnWithContext(d.logger, "unknown item detected", "unknown_item",
			logging.String(logging.FieldLabel, top.Label),
			logging.Float64("probability", top.Probability),
			logging.String(logging.FieldErrorHint, "add the label to the catalog or retrain the classifier"),
			logging.String(logging.FieldImpact, "item not added to cart"),
		)
		return decision
	}

	line, err := d.ledger.AddItem(top.Label)
	if err != nil {
		// Only reachable if the ledger was built from a different catalog.
		decision.Outcome = OutcomeUnknown
		logging.WarnWithContext(d.logger, "cart rejected scanned item", "cart_add_failed",
			logging.String(logging.FieldLabel, top.Label),
			logging.Error(err),
			logging.String(logging.FieldImpact, "item not added to cart"),
		)
		return decision
	}
	state.hold(top.Label, now)
	decision.Outcome = OutcomeScanned
	decision.Line = line
	d.logger.Info("item scanned",
		logging.String(logging.FieldLabel, top.Label),
		logging.Int("quantity", line.Quantity),
		logging.Int64("price", line.Price),
		logging.String(logging.FieldEventType, "item_scanned"),
	)
	return decision
}

func (d *Debouncer) isSentinel(label string) bool {
	_, ok := d.sentinels[strings.ToLower(label)]
	return ok
}

func (d *Debouncer) accept(state *State, label string, now time.Time) bool {
	held, at, holding := state.Holding()
	if !holding || held != label {
		return true
	}
	return now.Sub(at) > d.cooldown
}
