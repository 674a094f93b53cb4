package kiosk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scancart/internal/cart"
	"scancart/internal/logging"
	"scancart/internal/payment"
	"scancart/internal/receipts"
)

const receiptWriteTimeout = 10 * time.Second

type checkoutState struct {
	session   *payment.Session
	snapshot  cart.Snapshot
	receiptID string
	recordErr error
	// settled is set once a completed payment has been journaled and the
	// cart cleared; until then the checkout still reads as pending.
	settled bool
}

// Checkout describes the current or most recent payment session.
type Checkout struct {
	ID          string        `json:"id"`
	State       payment.State `json:"state"`
	Amount      int64         `json:"amount"`
	AmountText  string        `json:"amount_text"`
	Payload     string        `json:"payload"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Cart        cart.Snapshot `json:"cart"`
	ReceiptID   string        `json:"receipt_id,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func (k *Kiosk) describe(state *checkoutState) Checkout {
	s := state.session
	out := Checkout{
		ID:         s.ID,
		State:      s.State(),
		Amount:     s.Amount,
		AmountText: k.FormatAmount(s.Amount),
		Payload:    s.Payload,
		StartedAt:  s.StartedAt,
		Cart:       state.snapshot,
		ReceiptID:  state.receiptID,
	}
	if out.State == payment.StateCompleted && !state.settled {
		out.State = payment.StatePending
	} else if done := s.CompletedAt(); !done.IsZero() {
		out.CompletedAt = &done
	}
	if state.recordErr != nil {
		out.Error = state.recordErr.Error()
	}
	return out
}

// Checkout snapshots the cart and opens a payment session for its total.
// Scanning is paused and manual adds are refused while the payment is
// pending, so the snapshot is exactly what gets paid. On completion the
// snapshot is journaled as a receipt and the cart is cleared; completion or
// cancellation resumes scanning.
func (k *Kiosk) Checkout(ctx context.Context) (Checkout, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return Checkout{}, errors.New("kiosk is closed")
	}
	if k.pendingLocked() {
		return Checkout{}, ErrCheckoutInProgress
	}
	k.scanner.Pause()
	snapshot := k.ledger.Snapshot()
	if snapshot.Empty() {
		k.scanner.Resume()
		return Checkout{}, ErrEmptyCart
	}

	state := &checkoutState{snapshot: snapshot}
	session, err := k.payments.Begin(ctx, snapshot.Total, func(s *payment.Session) {
		k.completeCheckout(state)
	})
	if err != nil {
		k.scanner.Resume()
		return Checkout{}, fmt.Errorf("begin payment: %w", err)
	}
	state.session = session
	k.checkout = state

	amount := k.FormatAmount(snapshot.Total)
	logging.WithContext(logging.WithSessionID(ctx, session.ID), k.logger).Info("checkout started",
		logging.String("amount", amount),
		logging.Int("items", snapshot.Items),
		logging.String(logging.FieldEventType, "checkout_started"),
	)
	k.notify("checkout_started", func(ctx context.Context) error {
		return k.notifier.NotifyCheckoutStarted(ctx, amount)
	})
	return k.describe(state), nil
}

func (k *Kiosk) completeCheckout(state *checkoutState) {
	k.mu.Lock()
	defer k.mu.Unlock()

	// The payment callback can fire while Checkout still holds mu, so the
	// session pointer is read here rather than captured.
	session := state.session
	logger := logging.WithContext(logging.WithSessionID(context.Background(), session.ID), k.logger)

	if k.closed {
		logger.Warn("payment completed after shutdown; receipt not recorded")
		return
	}

	if k.receipts != nil {
		ctx, cancel := context.WithTimeout(context.Background(), receiptWriteTimeout)
		err := k.receipts.Record(ctx, receipts.Receipt{
			ID:        session.ID,
			Total:     state.snapshot.Total,
			Items:     state.snapshot.Items,
			Currency:  k.cfg.Payment.CurrencySymbol,
			Lines:     state.snapshot.Lines,
			StartedAt: session.StartedAt,
			PaidAt:    session.CompletedAt(),
		})
		cancel()
		if err != nil {
			state.recordErr = err
			logging.ErrorWithContext(logger, "receipt not recorded", "receipt_record_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check receipts.path permissions and disk space"),
			)
		} else {
			state.receiptID = session.ID
		}
	}

	removed := k.ledger.Clear()
	state.settled = true
	k.scanner.Resume()
	amount := k.FormatAmount(state.snapshot.Total)
	logger.Info("checkout completed",
		logging.String("amount", amount),
		logging.Int("lines_cleared", removed),
		logging.String(logging.FieldEventType, "checkout_completed"),
	)
	receiptID := state.receiptID
	k.notify("payment_completed", func(ctx context.Context) error {
		return k.notifier.NotifyPaymentCompleted(ctx, receiptID, amount)
	})
}

// pendingLocked reports whether a payment is in flight. Callers hold mu.
func (k *Kiosk) pendingLocked() bool {
	return k.checkout != nil && k.describe(k.checkout).State == payment.StatePending
}

// CheckoutStatus describes the current or most recent checkout.
func (k *Kiosk) CheckoutStatus() (Checkout, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.checkout == nil {
		return Checkout{}, ErrNoCheckout
	}
	return k.describe(k.checkout), nil
}

// CancelCheckout aborts a pending payment. The cart is left untouched.
func (k *Kiosk) CancelCheckout() (Checkout, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.checkout == nil || !k.checkout.session.Cancel() {
		return Checkout{}, ErrNoCheckout
	}
	k.scanner.Resume()
	k.logger.Info("checkout cancelled",
		logging.String(logging.FieldSessionID, k.checkout.session.ID),
		logging.String(logging.FieldEventType, "checkout_cancelled"),
	)
	return k.describe(k.checkout), nil
}

// CheckoutQRCode renders the payment QR code for the current checkout.
func (k *Kiosk) CheckoutQRCode() ([]byte, error) {
	k.mu.Lock()
	state := k.checkout
	k.mu.Unlock()
	if state == nil {
		return nil, ErrNoCheckout
	}
	return state.session.QRCode(k.cfg.Payment.QRSize)
}

// Receipts lists journaled receipts, newest first.
func (k *Kiosk) Receipts(ctx context.Context, limit int) ([]*receipts.Receipt, error) {
	if k.receipts == nil {
		return []*receipts.Receipt{}, nil
	}
	list, err := k.receipts.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*receipts.Receipt{}
	}
	return list, nil
}

// Receipt returns one journaled receipt.
func (k *Kiosk) Receipt(ctx context.Context, id string) (*receipts.Receipt, error) {
	if k.receipts == nil {
		return nil, fmt.Errorf("%w: receipts disabled", receipts.ErrNotFound)
	}
	return k.receipts.Get(ctx, id)
}

// IsConflict reports whether err should be surfaced as a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrEmptyCart) || errors.Is(err, ErrCheckoutInProgress)
}
