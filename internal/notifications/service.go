package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"scancart/internal/config"
)

const userAgent = "scancart/0.1"

// Service defines the notification surface used by the kiosk.
type Service interface {
	NotifyUnknownItem(ctx context.Context, label string) error
	NotifyCheckoutStarted(ctx context.Context, amount string) error
	NotifyPaymentCompleted(ctx context.Context, receiptID, total string) error
	NotifyClassifierUnavailable(ctx context.Context, err error) error
	TestNotification(ctx context.Context) error
}

// Option customizes the ntfy service.
type Option func(*ntfyService)

// WithClock overrides the clock used for the unknown-item dedup window.
func WithClock(clk clock.Clock) Option {
	return func(n *ntfyService) {
		if clk != nil {
			n.clock = clk
		}
	}
}

// WithHTTPClient overrides the transport client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *ntfyService) {
		if client != nil {
			n.client = client
		}
	}
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, opts ...Option) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	window := time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second

	svc := &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		clock:       clock.New(),
		unknownItem: cfg.Notifications.UnknownItem,
		checkout:    cfg.Notifications.Checkout,
		errors:      cfg.Notifications.Errors,
		dedupWindow: window,
		lastUnknown: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	clock    clock.Clock

	unknownItem bool
	checkout    bool
	errors      bool

	dedupWindow time.Duration
	mu          sync.Mutex
	lastUnknown map[string]time.Time
}

// NotifyUnknownItem is sent at most once per label within the dedup window,
// since the detector re-reports an unknown item on every accepted frame.
func (n *ntfyService) NotifyUnknownItem(ctx context.Context, label string) error {
	if !n.unknownItem {
		return nil
	}
	label = strings.TrimSpace(label)
	if !n.claimUnknown(label) {
		return nil
	}
	data := payload{
		title:   "Scancart - Unknown Item",
		message: fmt.Sprintf("Item not in catalog: %s", label),
		tags:    []string{"scancart", "unknown", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) claimUnknown(label string) bool {
	now := n.clock.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastUnknown[label]; ok && n.dedupWindow > 0 && now.Sub(last) < n.dedupWindow {
		return false
	}
	n.lastUnknown[label] = now
	return true
}

func (n *ntfyService) NotifyCheckoutStarted(ctx context.Context, amount string) error {
	if !n.checkout {
		return nil
	}
	data := payload{
		title:   "Scancart - Checkout",
		message: fmt.Sprintf("Checkout started: %s", strings.TrimSpace(amount)),
		tags:    []string{"scancart", "checkout", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPaymentCompleted(ctx context.Context, receiptID, total string) error {
	if !n.checkout {
		return nil
	}
	message := fmt.Sprintf("Payment received: %s", strings.TrimSpace(total))
	if receiptID = strings.TrimSpace(receiptID); receiptID != "" {
		message = fmt.Sprintf("%s\nReceipt: %s", message, receiptID)
	}
	data := payload{
		title:    "Scancart - Paid",
		message:  message,
		tags:     []string{"scancart", "payment", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyClassifierUnavailable(ctx context.Context, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Scanning disabled: ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Scancart - Classifier Unavailable",
		message:  builder.String(),
		tags:     []string{"scancart", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Scancart - Test",
		message:  "Notification system test",
		tags:     []string{"scancart", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyUnknownItem(context.Context, string) error              { return nil }
func (noopService) NotifyCheckoutStarted(context.Context, string) error          { return nil }
func (noopService) NotifyPaymentCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyClassifierUnavailable(context.Context, error) error     { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
