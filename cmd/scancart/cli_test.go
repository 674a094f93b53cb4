package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scancart/internal/classifier"
	"scancart/internal/detection"
	"scancart/internal/kiosk"
	"scancart/internal/payment"
	"scancart/internal/testsupport"
)

func idleClassifier() classifier.Classifier {
	return classifier.Func(func(ctx context.Context) ([]detection.Prediction, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func TestCartAddShowAndClear(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "cart")
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	requireContains(t, out, "Cart is empty")

	for _, label := range []string{"Lays", "Fanta", "Lays"} {
		if _, _, err := env.run(t, "cart", "add", label); err != nil {
			t.Fatalf("cart add %s: %v", label, err)
		}
	}
	out, _, err = env.run(t, "cart")
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	requireContains(t, out, "Lays")
	requireContains(t, out, "₹40")
	requireContains(t, out, "₹75")
	if strings.Index(out, "Lays") > strings.Index(out, "Fanta") {
		t.Fatalf("expected first-scan order, got:\n%s", out)
	}

	_, _, err = env.run(t, "cart", "add", "Oreo")
	if err == nil || !strings.Contains(err.Error(), "not in catalog") {
		t.Fatalf("expected unknown item error, got %v", err)
	}

	out, _, err = env.run(t, "clear")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	requireContains(t, out, "Cleared 2 lines")
	if env.kiosk.Total() != 0 {
		t.Fatalf("expected empty cart, total %d", env.kiosk.Total())
	}
}

func TestCheckoutWaitRecordsReceipt(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := env.run(t, "checkout")
	if err == nil || !strings.Contains(err.Error(), "cart is empty") {
		t.Fatalf("expected empty cart error, got %v", err)
	}

	if _, err := env.kiosk.AddItem("oreo"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	qr := filepath.Join(t.TempDir(), "pay.png")
	out, _, err := env.run(t, "--json", "checkout", "--wait", "--qr", qr)
	if err != nil {
		t.Fatalf("checkout --wait: %v", err)
	}
	var co kiosk.Checkout
	if err := json.Unmarshal([]byte(out), &co); err != nil {
		t.Fatalf("decode checkout json: %v\n%s", err, out)
	}
	if co.State != payment.StateCompleted || co.Amount != 45 || co.ReceiptID == "" {
		t.Fatalf("unexpected checkout: %+v", co)
	}
	// With no delay the payment may complete before the QR request.
	if _, err := os.Stat(qr); err != nil && !os.IsNotExist(err) {
		t.Fatalf("stat qr: %v", err)
	}

	out, _, err = env.run(t, "receipts")
	if err != nil {
		t.Fatalf("receipts: %v", err)
	}
	requireContains(t, out, co.ReceiptID)
	requireContains(t, out, "₹45")

	out, _, err = env.run(t, "receipts", co.ReceiptID)
	if err != nil {
		t.Fatalf("receipts ID: %v", err)
	}
	requireContains(t, out, "oreo")

	out, _, err = env.run(t, "checkout", "--status")
	if err != nil {
		t.Fatalf("checkout --status: %v", err)
	}
	requireContains(t, out, "completed")
}

func TestCheckoutCancel(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithPaymentDelay(60))
	if _, err := env.kiosk.AddItem("Lays"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	qr := filepath.Join(t.TempDir(), "pay.png")
	out, _, err := env.run(t, "checkout", "--qr", qr)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	requireContains(t, out, "pending")
	requireContains(t, out, "Payment for ₹20")
	if info, err := os.Stat(qr); err != nil || info.Size() == 0 {
		t.Fatalf("expected QR png written: %v", err)
	}

	out, _, err = env.run(t, "checkout", "--cancel")
	if err != nil {
		t.Fatalf("checkout --cancel: %v", err)
	}
	requireContains(t, out, "cancelled")
	if env.kiosk.Total() != 20 {
		t.Fatalf("cancel should keep the cart, total %d", env.kiosk.Total())
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.kiosk.AddItem("Fanta"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	out, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Scanner:")
	requireContains(t, out, "Detection:")
	requireContains(t, out, "none")
	requireContains(t, out, "Fanta")
	requireContains(t, out, "0 paid")
	requireContains(t, out, "Journal:")

	out, _, err = env.run(t, "--json", "status")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var st kiosk.Status
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Cart.Total != 35 {
		t.Fatalf("unexpected status cart: %+v", st.Cart)
	}
	if st.ReceiptsPath != env.cfg.Receipts.Path {
		t.Fatalf("expected receipts path %q, got %q", env.cfg.Receipts.Path, st.ReceiptsPath)
	}
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.kiosk.AddItem("Lays"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	env.kiosk.ClearCart()

	out, _, err := env.run(t, "logs", "--component", "kiosk")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "kiosk: cart cleared")
}

func TestUnreachableKiosk(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"cart"}, "http://127.0.0.1:1", env.configPath)
	if err == nil || !strings.Contains(err.Error(), "scancart run") {
		t.Fatalf("expected hint to start the kiosk, got %v", err)
	}
}

func TestCatalogCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"catalog"}, "", env.configPath)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	requireContains(t, out, "oreo")
	requireContains(t, out, "₹45")
	if strings.Index(out, "Fanta") > strings.Index(out, "Lays") {
		t.Fatalf("expected sorted labels, got:\n%s", out)
	}
}

func TestReplayCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	frames := testsupport.WriteReplay(t,
		`# lays held in front of the camera`,
		`{"at_ms":0,"predictions":[{"className":"Lays","probability":0.99}]}`,
		`{"at_ms":1000,"predictions":[{"className":"Lays","probability":0.99}]}`,
		`{"at_ms":1500,"predictions":[{"className":"Background","probability":0.999}]}`,
		`{"at_ms":3500,"predictions":[{"className":"Lays","probability":0.99}]}`,
		`{"at_ms":3600,"predictions":[{"className":"Banana","probability":0.99}]}`,
		`{"at_ms":3700,"predictions":[]}`,
	)

	out, _, err := runCLI(t, []string{"replay", "--trace", frames}, "", env.configPath)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	requireContains(t, out, "Replayed 6 frames")
	requireContains(t, out, "Last detection: Banana")
	requireContains(t, out, "₹40")
	requireContains(t, out, "cooldown")
	requireContains(t, out, "qty=2")

	out, _, err = runCLI(t, []string{"--json", "replay", frames}, "", env.configPath)
	if err != nil {
		t.Fatalf("replay --json: %v", err)
	}
	var report replayReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode replay report: %v", err)
	}
	if report.Stats.Scanned != 2 || report.Stats.Cooldown != 1 || report.Stats.Sentinel != 1 || report.Stats.Unknown != 1 || report.Stats.Empty != 1 {
		t.Fatalf("unexpected stats: %+v", report.Stats)
	}
	if report.Cart.Total != 40 {
		t.Fatalf("unexpected replay cart: %+v", report.Cart)
	}
	// The live kiosk cart is untouched by replays.
	if env.kiosk.Total() != 0 {
		t.Fatalf("replay leaked into live cart: %d", env.kiosk.Total())
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, "", env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Catalog items: 3")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
}
