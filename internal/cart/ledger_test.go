package cart_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"scancart/internal/cart"
	"scancart/internal/catalog"
)

func newLedger(t *testing.T) *cart.Ledger {
	t.Helper()
	cat, err := catalog.New(map[string]int64{"Lays": 20, "Pringles": 90, "Fanta": 35})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cart.NewLedger(cat)
}

func TestAddItemAppendsThenIncrements(t *testing.T) {
	ledger := newLedger(t)

	if _, err := ledger.AddItem("Lays"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := ledger.AddItem("Pringles"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	line, err := ledger.AddItem("Lays")
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if line.Quantity != 2 {
		t.Fatalf("expected returned line quantity 2, got %d", line.Quantity)
	}

	want := cart.Snapshot{
		Lines: []cart.Line{
			{Name: "Lays", Price: 20, Quantity: 2},
			{Name: "Pringles", Price: 90, Quantity: 1},
		},
		Total: 130,
		Items: 3,
	}
	if diff := cmp.Diff(want, ledger.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestAddItemRejectsUnknownLabel(t *testing.T) {
	ledger := newLedger(t)
	if _, err := ledger.AddItem("Banana"); !errors.Is(err, cart.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if _, err := ledger.AddItem("lays"); !errors.Is(err, cart.ErrUnknownItem) {
		t.Fatalf("expected case-sensitive rejection, got %v", err)
	}
	if ledger.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d lines", ledger.Len())
	}
}

func TestClearThenTotalIsZero(t *testing.T) {
	ledger := newLedger(t)
	for _, label := range []string{"Lays", "Fanta", "Fanta"} {
		if _, err := ledger.AddItem(label); err != nil {
			t.Fatalf("AddItem(%q): %v", label, err)
		}
	}
	if got := ledger.Total(); got != 90 {
		t.Fatalf("expected total 90, got %d", got)
	}
	if removed := ledger.Clear(); removed != 2 {
		t.Fatalf("expected 2 lines removed, got %d", removed)
	}
	if got := ledger.Total(); got != 0 {
		t.Fatalf("expected total 0 after clear, got %d", got)
	}
	if !ledger.Snapshot().Empty() {
		t.Fatal("expected empty snapshot after clear")
	}

	// A cleared ledger starts new lines from quantity 1 again.
	line, err := ledger.AddItem("Fanta")
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if line.Quantity != 1 {
		t.Fatalf("expected fresh line after clear, got quantity %d", line.Quantity)
	}
}

func TestTotalHasNoSideEffects(t *testing.T) {
	ledger := newLedger(t)
	if _, err := ledger.AddItem("Pringles"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	before := ledger.Snapshot()
	for i := 0; i < 3; i++ {
		if got := ledger.Total(); got != 90 {
			t.Fatalf("call %d: expected 90, got %d", i, got)
		}
	}
	if diff := cmp.Diff(before, ledger.Snapshot()); diff != "" {
		t.Fatalf("Total mutated ledger (-before +after):\n%s", diff)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ledger := newLedger(t)
	if _, err := ledger.AddItem("Lays"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	snap := ledger.Snapshot()
	snap.Lines[0].Quantity = 50
	if got := ledger.Snapshot().Lines[0].Quantity; got != 1 {
		t.Fatalf("snapshot mutation leaked into ledger: quantity %d", got)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:       "₹0",
		20:      "₹20",
		1234:    "₹1,234",
		1000000: "₹1,000,000",
		-45:     "-₹45",
	}
	for amount, want := range cases {
		if got := cart.FormatAmount("₹", amount); got != want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", amount, got, want)
		}
	}
}
