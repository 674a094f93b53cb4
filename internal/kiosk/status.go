package kiosk

import (
	"context"
	"time"

	"scancart/internal/cart"
	"scancart/internal/logging"
	"scancart/internal/receipts"
	"scancart/internal/scanner"
)

// Status is the aggregate view served by /api/status and `scancart status`.
type Status struct {
	Running          bool              `json:"running"`
	Scanner          scanner.Status    `json:"scanner"`
	ScannerError     string            `json:"scanner_error,omitempty"`
	CurrentDetection string            `json:"current_detection"`
	Camera           *CameraStatus     `json:"camera,omitempty"`
	Cart             cart.Snapshot     `json:"cart"`
	CartTotalText    string            `json:"cart_total_text"`
	Checkout         *Checkout         `json:"checkout,omitempty"`
	Stats            scanner.Stats     `json:"stats"`
	Receipts         *receipts.Summary `json:"receipts,omitempty"`
	ReceiptsPath     string            `json:"receipts_path,omitempty"`
	LockPath         string            `json:"lock_path"`
	CheckedAt        time.Time         `json:"checked_at"`
}

// CameraStatus reports the hotplug monitor view of the capture device.
type CameraStatus struct {
	Device     string `json:"device"`
	Present    bool   `json:"present"`
	Monitoring bool   `json:"monitoring"`
}

// Status collects scanner, cart, checkout, and journal state. A journal read
// failure leaves Receipts nil rather than failing the whole call.
func (k *Kiosk) Status(ctx context.Context) Status {
	snapshot := k.ledger.Snapshot()
	st := Status{
		Running:          k.running.Load(),
		Scanner:          k.scanner.Status(),
		CurrentDetection: k.scanner.CurrentDetection(),
		Cart:             snapshot,
		CartTotalText:    k.FormatAmount(snapshot.Total),
		Stats:            k.scanner.Stats(),
		LockPath:         k.lockPath,
		CheckedAt:        k.clock.Now(),
	}
	if err := k.scanner.LastError(); err != nil {
		st.ScannerError = err.Error()
	}
	if k.camera != nil {
		st.Camera = &CameraStatus{
			Device:     k.camera.Device(),
			Present:    k.camera.Present(),
			Monitoring: k.camera.Running(),
		}
	}
	if checkout, err := k.CheckoutStatus(); err == nil {
		st.Checkout = &checkout
	}
	if k.receipts != nil {
		st.ReceiptsPath = k.receipts.Path()
		if summary, err := k.receipts.Summary(ctx); err == nil {
			st.Receipts = &summary
		} else {
			k.logger.Warn("receipt summary unavailable", logging.Error(err))
		}
	}
	return st
}
