package receipts_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"scancart/internal/cart"
	"scancart/internal/receipts"
	"scancart/internal/testsupport"
)

func TestRecordGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReceipts(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	want := receipts.Receipt{
		ID:       "sess-1",
		Total:    75,
		Items:    3,
		Currency: "₹",
		Lines: []cart.Line{
			{Name: "Lays", Price: 20, Quantity: 2},
			{Name: "Fanta", Price: 35, Quantity: 1},
		},
		StartedAt: started,
		PaidAt:    started.Add(5 * time.Second),
	}
	if err := store.Record(ctx, want); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("receipt mismatch (-want +got):\n%s", diff)
	}

	if err := store.Record(ctx, want); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := testsupport.MustOpenReceipts(t, testsupport.NewConfig(t))
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, receipts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := testsupport.MustOpenReceipts(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	// Sub-second offsets check that ordering does not depend on string trimming.
	offsets := []time.Duration{0, 500 * time.Millisecond, time.Second, 1500 * time.Millisecond}
	for i, off := range offsets {
		r := receipts.Receipt{
			ID:        string(rune('a' + i)),
			Total:     int64(10 * (i + 1)),
			Items:     1,
			StartedAt: base,
			PaidAt:    base.Add(off),
		}
		if err := store.Record(ctx, r); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	list, err := store.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"d", "c", "b"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if list[0].Lines == nil || len(list[0].Lines) != 0 {
		t.Fatalf("expected empty non-nil lines for a receipt recorded without lines, got %#v", list[0].Lines)
	}

	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("expected all receipts, got %d err=%v", len(all), err)
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Count != 4 || summary.Revenue != 100 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReceipts(t, cfg)
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.Receipts.Path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := receipts.Open(context.Background(), cfg.Receipts.Path); !errors.Is(err, receipts.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRecordRequiresID(t *testing.T) {
	store := testsupport.MustOpenReceipts(t, testsupport.NewConfig(t))
	if err := store.Record(context.Background(), receipts.Receipt{Total: 1}); err == nil {
		t.Fatal("expected error for empty id")
	}
}
