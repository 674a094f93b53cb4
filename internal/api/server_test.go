package api_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"scancart/internal/api"
	"scancart/internal/classifier"
	"scancart/internal/config"
	"scancart/internal/detection"
	"scancart/internal/kiosk"
	"scancart/internal/logging"
	"scancart/internal/payment"
	"scancart/internal/testsupport"
)

type harness struct {
	cfg    *config.Config
	kiosk  *kiosk.Kiosk
	mock   *clock.Mock
	hub    *logging.StreamHub
	server *httptest.Server
	client *api.Client
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	opts = append([]testsupport.ConfigOption{
		testsupport.WithCatalog(map[string]int64{"Lays": 20, "Fanta": 35, "oreo": 45}),
		testsupport.WithPaymentDelay(5),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	mock := clock.NewMock()
	idle := classifier.Func(func(ctx context.Context) ([]detection.Prediction, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	k, err := kiosk.New(cfg, logging.NewNop(), kiosk.WithClock(mock), kiosk.WithClassifier(idle))
	if err != nil {
		t.Fatalf("kiosk.New: %v", err)
	}
	t.Cleanup(func() { _ = k.Close() })

	hub := logging.NewStreamHub(16)
	srv := api.NewServer(cfg, k, hub, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{
		cfg:    cfg,
		kiosk:  k,
		mock:   mock,
		hub:    hub,
		server: ts,
		client: api.NewClient(ts.URL, cfg.API.Token),
	}
}

func TestCartRoutes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, label := range []string{"Lays", "Fanta", "Lays"} {
		if _, err := h.client.AddItem(ctx, label); err != nil {
			t.Fatalf("AddItem(%q): %v", label, err)
		}
	}
	c, err := h.client.Cart(ctx)
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if c.Total != 75 || c.TotalText != "₹75" || c.Items != 3 {
		t.Fatalf("unexpected cart: %+v", c)
	}
	if len(c.Lines) != 2 || c.Lines[0].Name != "Lays" || c.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines: %+v", c.Lines)
	}

	cat, err := h.client.Catalog(ctx)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if cat.Currency != "₹" || len(cat.Items) != 3 || cat.Items[0].Label != "Fanta" {
		t.Fatalf("unexpected catalog: %+v", cat)
	}

	det, err := h.client.Detection(ctx)
	if err != nil {
		t.Fatalf("Detection: %v", err)
	}
	if det.Label != "" {
		t.Fatalf("expected no detection yet, got %q", det.Label)
	}

	cleared, err := h.client.ClearCart(ctx)
	if err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if cleared.Removed != 2 {
		t.Fatalf("expected two lines removed, got %d", cleared.Removed)
	}
	c, err = h.client.Cart(ctx)
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if c.Total != 0 || c.Lines == nil {
		t.Fatalf("expected empty, non-nil cart lines, got %+v", c)
	}
}

func TestAddItemRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.client.AddItem(ctx, "Oreo"); !api.IsStatus(err, http.StatusUnprocessableEntity) {
		t.Fatalf("expected 422 for label not in catalog, got %v", err)
	}
	if _, err := h.client.AddItem(ctx, "  "); !api.IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected 400 for blank label, got %v", err)
	}
}

func TestCheckoutRoutes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.client.CheckoutStatus(ctx); !api.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 before any checkout, got %v", err)
	}
	if _, err := h.client.Checkout(ctx); !api.IsStatus(err, http.StatusConflict) {
		t.Fatalf("expected 409 for empty cart, got %v", err)
	}
	if _, err := h.client.CheckoutQRCode(ctx); !api.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 QR without checkout, got %v", err)
	}

	if _, err := h.client.AddItem(ctx, "oreo"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	co, err := h.client.Checkout(ctx)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if co.State != payment.StatePending || co.Amount != 45 || co.Payload != "Payment for ₹45" {
		t.Fatalf("unexpected checkout: %+v", co)
	}
	if _, err := h.client.Checkout(ctx); !api.IsStatus(err, http.StatusConflict) {
		t.Fatalf("expected 409 while pending, got %v", err)
	}
	if _, err := h.client.AddItem(ctx, "Lays"); !api.IsStatus(err, http.StatusConflict) {
		t.Fatalf("expected 409 for add while pending, got %v", err)
	}

	png, err := h.client.CheckoutQRCode(ctx)
	if err != nil {
		t.Fatalf("CheckoutQRCode: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("expected PNG data, got % x", png[:min(8, len(png))])
	}

	h.mock.Add(5 * time.Second)
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := h.client.CheckoutStatus(ctx)
		if err == nil && st.State == payment.StateCompleted && st.ReceiptID != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("checkout never completed: %+v %v", st, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	list, err := h.client.Receipts(ctx, 5)
	if err != nil {
		t.Fatalf("Receipts: %v", err)
	}
	if len(list) != 1 || list[0].ID != co.ID || list[0].Total != 45 {
		t.Fatalf("unexpected receipts: %+v", list)
	}
	receipt, err := h.client.Receipt(ctx, co.ID)
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if len(receipt.Lines) != 1 || receipt.Lines[0].Name != "oreo" {
		t.Fatalf("unexpected receipt lines: %+v", receipt.Lines)
	}
	if _, err := h.client.Receipt(ctx, "missing"); !api.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 for unknown receipt, got %v", err)
	}

	c, err := h.client.Cart(ctx)
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if c.Total != 0 {
		t.Fatalf("expected cart cleared after payment, got total %d", c.Total)
	}
}

func TestCancelCheckoutRoute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.client.CancelCheckout(ctx); !api.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 with nothing to cancel, got %v", err)
	}
	if _, err := h.client.AddItem(ctx, "Lays"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := h.client.Checkout(ctx); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	co, err := h.client.CancelCheckout(ctx)
	if err != nil {
		t.Fatalf("CancelCheckout: %v", err)
	}
	if co.State != payment.StateCancelled {
		t.Fatalf("expected cancelled, got %s", co.State)
	}
	c, err := h.client.Cart(ctx)
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if c.Total != 20 {
		t.Fatalf("cancel must keep the cart, got total %d", c.Total)
	}
}

func TestBearerTokenRequired(t *testing.T) {
	h := newHarness(t, testsupport.WithAPIToken("s3cret"))
	ctx := context.Background()

	anonymous := api.NewClient(h.server.URL, "")
	_, err := anonymous.Status(ctx)
	if !api.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 without token, got %v", err)
	}
	wrong := api.NewClient(h.server.URL, "nope")
	if _, err := wrong.Cart(ctx); !api.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 with wrong token, got %v", err)
	}

	st, err := h.client.Status(ctx)
	if err != nil {
		t.Fatalf("Status with token: %v", err)
	}
	if st.Running {
		t.Fatal("kiosk was never started")
	}
	if st.Receipts == nil {
		t.Fatal("expected receipt summary in status")
	}
}

func TestRequestIDAndMethodCheck(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/api/status", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	if got := resp.Header.Get("Allow"); got != http.MethodGet {
		t.Fatalf("expected Allow GET, got %q", got)
	}
}

func TestLogsRoute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.hub.Publish(logging.LogEvent{Level: "info", Message: "scanner started", Component: "scanner"})
	h.hub.Publish(logging.LogEvent{Level: "info", Message: "item scanned", Component: "detection", Label: "Lays"})
	h.hub.Publish(logging.LogEvent{Level: "warn", Message: "unknown item detected", Component: "detection", Label: "Banana"})

	tail, err := h.client.Logs(ctx, api.LogQuery{Tail: true, Limit: 2})
	if err != nil {
		t.Fatalf("Logs tail: %v", err)
	}
	if len(tail.Events) != 2 || tail.Events[0].Message != "item scanned" || tail.Next != 3 {
		t.Fatalf("unexpected tail: %+v", tail)
	}

	warn, err := h.client.Logs(ctx, api.LogQuery{Level: "WARN"})
	if err != nil {
		t.Fatalf("Logs level filter: %v", err)
	}
	if len(warn.Events) != 1 || warn.Events[0].Label != "Banana" {
		t.Fatalf("unexpected level filter result: %+v", warn.Events)
	}

	since, err := h.client.Logs(ctx, api.LogQuery{Since: 1, Component: "detection"})
	if err != nil {
		t.Fatalf("Logs since: %v", err)
	}
	if len(since.Events) != 2 {
		t.Fatalf("expected two detection events after seq 1, got %+v", since.Events)
	}

	followCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	go func() {
		time.Sleep(50 * time.Millisecond)
		h.hub.Publish(logging.LogEvent{Level: "info", Message: "cart cleared", Component: "kiosk"})
	}()
	follow, err := h.client.Logs(followCtx, api.LogQuery{Since: 3, Follow: true})
	if err != nil {
		t.Fatalf("Logs follow: %v", err)
	}
	if len(follow.Events) != 1 || follow.Events[0].Message != "cart cleared" || follow.Next != 4 {
		t.Fatalf("unexpected follow result: %+v", follow)
	}
}

func TestBaseURL(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:7480": "http://127.0.0.1:7480",
		"0.0.0.0:7480":   "http://127.0.0.1:7480",
		":9000":          "http://127.0.0.1:9000",
		"[::]:7480":      "http://127.0.0.1:7480",
		"kiosk.lan:80":   "http://kiosk.lan:80",
	}
	for bind, want := range cases {
		if got := api.BaseURL(bind); got != want {
			t.Errorf("BaseURL(%q) = %q, want %q", bind, got, want)
		}
	}
}
