package cart

import (
	"errors"
	"fmt"
	"sync"

	"scancart/internal/catalog"
)

// ErrUnknownItem is returned by AddItem for labels that are not catalog keys.
var ErrUnknownItem = errors.New("item not in catalog")

// Line is one product in the cart. Price is frozen when the line is created.
type Line struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Amount returns price times quantity for the line.
func (l Line) Amount() int64 {
	return l.Price * int64(l.Quantity)
}

// Snapshot is a point-in-time copy of the ledger.
type Snapshot struct {
	Lines []Line `json:"lines"`
	Total int64  `json:"total"`
	Items int    `json:"items"`
}

// Empty reports whether the snapshot has no lines.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// Ledger is the running cart. Lines keep first-scan order and are unique by
// name. The scanner loop is the only writer; the mutex exists so presentation
// readers can take snapshots from other goroutines.
type Ledger struct {
	catalog *catalog.Catalog

	mu    sync.RWMutex
	lines []Line
	index map[string]int
}

// NewLedger returns an empty ledger priced from cat.
func NewLedger(cat *catalog.Catalog) *Ledger {
	return &Ledger{
		catalog: cat,
		index:   make(map[string]int),
	}
}

// AddItem records one scan of label. An existing line has its quantity
// incremented and keeps its original price; otherwise a new line is appended
// at the catalog price with quantity 1.
func (l *Ledger) AddItem(label string) (Line, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if idx, ok := l.index[label]; ok {
		l.lines[idx].Quantity++
		return l.lines[idx], nil
	}

	price, ok := l.catalog.Lookup(label)
	if !ok {
		return Line{}, fmt.Errorf("%w: %q", ErrUnknownItem, label)
	}
	line := Line{Name: label, Price: price, Quantity: 1}
	l.index[label] = len(l.lines)
	l.lines = append(l.lines, line)
	return line, nil
}

// Clear empties the ledger and returns how many lines were removed.
func (l *Ledger) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := len(l.lines)
	l.lines = nil
	l.index = make(map[string]int)
	return removed
}

// Total returns the sum of price times quantity over all lines.
func (l *Ledger) Total() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return totalOf(l.lines)
}

// Len returns the number of distinct lines.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.lines)
}

// Snapshot copies the current lines and their computed total.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lines := make([]Line, len(l.lines))
	copy(lines, l.lines)
	items := 0
	for _, line := range lines {
		items += line.Quantity
	}
	return Snapshot{Lines: lines, Total: totalOf(lines), Items: items}
}

func totalOf(lines []Line) int64 {
	var total int64
	for _, line := range lines {
		total += line.Amount()
	}
	return total
}
