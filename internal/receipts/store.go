package receipts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scancart/internal/cart"
)

// ErrNotFound is returned by Get for unknown receipt IDs.
var ErrNotFound = errors.New("receipt not found")

// Receipt is the journal entry for one completed payment.
type Receipt struct {
	ID        string      `json:"id"`
	Total     int64       `json:"total"`
	Items     int         `json:"items"`
	Currency  string      `json:"currency"`
	Lines     []cart.Line `json:"lines"`
	StartedAt time.Time   `json:"started_at"`
	PaidAt    time.Time   `json:"paid_at"`
}

// Store is the SQLite receipt journal.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open creates or opens the journal at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("receipts: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure receipts directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores r. Recording the same ID twice is an error.
func (s *Store) Record(ctx context.Context, r Receipt) error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("record receipt: id required")
	}
	lines := r.Lines
	if lines == nil {
		lines = []cart.Line{}
	}
	encoded, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode receipt lines: %w", err)
	}
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO receipts (id, total, items, currency, lines_json, started_at, paid_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Total, r.Items, r.Currency, string(encoded),
			formatTime(r.StartedAt), formatTime(r.PaidAt),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("record receipt %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the receipt with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, total, items, currency, lines_json, started_at, paid_at FROM receipts WHERE id = ?`, id)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List returns the most recent receipts first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Receipt, error) {
	query := `SELECT id, total, items, currency, lines_json, started_at, paid_at
		FROM receipts ORDER BY paid_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []*Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return out, nil
}

// Summary aggregates the journal.
type Summary struct {
	Count   int   `json:"count"`
	Revenue int64 `json:"revenue"`
}

// Summary returns the receipt count and summed totals.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(1), COALESCE(SUM(total), 0) FROM receipts")
	if err := row.Scan(&sum.Count, &sum.Revenue); err != nil {
		return Summary{}, fmt.Errorf("summarize receipts: %w", err)
	}
	return sum, nil
}

func scanReceipt(scanner interface{ Scan(dest ...any) error }) (*Receipt, error) {
	var (
		r         Receipt
		linesJSON string
		started   string
		paid      string
	)
	if err := scanner.Scan(&r.ID, &r.Total, &r.Items, &r.Currency, &linesJSON, &started, &paid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	if err := json.Unmarshal([]byte(linesJSON), &r.Lines); err != nil {
		return nil, fmt.Errorf("decode receipt %s lines: %w", r.ID, err)
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, fmt.Errorf("receipt %s started_at: %w", r.ID, err)
	}
	if r.PaidAt, err = parseTime(paid); err != nil {
		return nil, fmt.Errorf("receipt %s paid_at: %w", r.ID, err)
	}
	return &r, nil
}

// timeLayout has fixed-width fractions so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, value, time.UTC)
}
