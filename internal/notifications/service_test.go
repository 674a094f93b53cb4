package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"scancart/internal/notifications"
	"scancart/internal/testsupport"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

type recorder struct {
	mu   sync.Mutex
	reqs []captured
}

func (r *recorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		r.mu.Lock()
		r.reqs = append(r.reqs, captured{
			title:    req.Header.Get("Title"),
			message:  string(body),
			tags:     req.Header.Get("Tags"),
			priority: req.Header.Get("Priority"),
		})
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (r *recorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.reqs...)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := notifications.NewService(cfg)
	if err := svc.NotifyUnknownItem(context.Background(), "Banana"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(srv.URL))
	svc := notifications.NewService(cfg)
	ctx := context.Background()

	tests := []struct {
		name string
		send func() error
		want captured
	}{
		{
			name: "unknown item",
			send: func() error { return svc.NotifyUnknownItem(ctx, " Banana ") },
			want: captured{title: "Scancart - Unknown Item", message: "Item not in catalog: Banana", tags: "scancart,unknown,review"},
		},
		{
			name: "checkout started",
			send: func() error { return svc.NotifyCheckoutStarted(ctx, "₹75") },
			want: captured{title: "Scancart - Checkout", message: "Checkout started: ₹75", tags: "scancart,checkout,started"},
		},
		{
			name: "payment completed",
			send: func() error { return svc.NotifyPaymentCompleted(ctx, "abc", "₹75") },
			want: captured{title: "Scancart - Paid", message: "Payment received: ₹75\nReceipt: abc", tags: "scancart,payment,completed", priority: "high"},
		},
		{
			name: "classifier unavailable",
			send: func() error { return svc.NotifyClassifierUnavailable(ctx, errors.New("camera access denied")) },
			want: captured{title: "Scancart - Classifier Unavailable", message: "Scanning disabled: camera access denied", tags: "scancart,error,alert", priority: "high"},
		},
		{
			name: "test",
			send: func() error { return svc.TestNotification(ctx) },
			want: captured{title: "Scancart - Test", message: "Notification system test", tags: "scancart,test", priority: "low"},
		},
	}

	for i, tc := range tests {
		if err := tc.send(); err != nil {
			t.Fatalf("%s: send: %v", tc.name, err)
		}
		got := rec.all()
		if len(got) != i+1 {
			t.Fatalf("%s: expected %d requests, got %d", tc.name, i+1, len(got))
		}
		if got[i] != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.name, got[i], tc.want)
		}
	}
}

func TestUnknownItemDedupWindow(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(srv.URL))
	cfg.Notifications.DedupWindowSeconds = 60
	mock := clock.NewMock()
	svc := notifications.NewService(cfg, notifications.WithClock(mock))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.NotifyUnknownItem(ctx, "Banana"); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.NotifyUnknownItem(ctx, "Mango"); err != nil {
		t.Fatal(err)
	}
	if got := len(rec.all()); got != 2 {
		t.Fatalf("expected one alert per label, got %d", got)
	}

	mock.Add(61 * time.Second)
	if err := svc.NotifyUnknownItem(ctx, "Banana"); err != nil {
		t.Fatal(err)
	}
	if got := len(rec.all()); got != 3 {
		t.Fatalf("expected alert after window, got %d", got)
	}
}

func TestDisabledCategoriesAreSilent(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(srv.URL))
	cfg.Notifications.UnknownItem = false
	cfg.Notifications.Checkout = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(cfg)
	ctx := context.Background()

	_ = svc.NotifyUnknownItem(ctx, "Banana")
	_ = svc.NotifyCheckoutStarted(ctx, "₹1")
	_ = svc.NotifyPaymentCompleted(ctx, "id", "₹1")
	_ = svc.NotifyClassifierUnavailable(ctx, errors.New("x"))
	if got := len(rec.all()); got != 0 {
		t.Fatalf("expected no requests, got %d", got)
	}
}

func TestNtfyErrorStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(srv.URL))
	err := notifications.NewService(cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
