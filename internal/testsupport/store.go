package testsupport

import (
	"context"
	"testing"

	"scancart/internal/config"
	"scancart/internal/receipts"
)

// MustOpenReceipts opens the receipt journal configured on cfg and closes it
// when the test ends.
func MustOpenReceipts(t testing.TB, cfg *config.Config) *receipts.Store {
	t.Helper()
	store, err := receipts.Open(context.Background(), cfg.Receipts.Path)
	if err != nil {
		t.Fatalf("receipts.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
