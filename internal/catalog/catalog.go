package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

var (
	// ErrEmptyLabel reports a catalog entry whose label is blank.
	ErrEmptyLabel = errors.New("catalog label is empty")
	// ErrInvalidPrice reports a catalog entry whose price is not positive.
	ErrInvalidPrice = errors.New("catalog price must be positive")
)

// Entry is one priced product.
type Entry struct {
	Label string `json:"label"`
	Price int64  `json:"price"`
}

// Catalog is an immutable label to unit price table. Lookups are exact and
// case-sensitive; "Oreo" and "oreo" are different keys.
type Catalog struct {
	prices map[string]int64
}

// New builds a catalog from the provided items. The map is copied so later
// changes by the caller do not leak into the catalog.
func New(items map[string]int64) (*Catalog, error) {
	prices := make(map[string]int64, len(items))
	for label, price := range items {
		if strings.TrimSpace(label) == "" {
			return nil, ErrEmptyLabel
		}
		if price <= 0 {
			return nil, fmt.Errorf("%w: %q has price %d", ErrInvalidPrice, label, price)
		}
		prices[label] = price
	}
	return &Catalog{prices: prices}, nil
}

// Lookup returns the unit price for label. The second result is false when
// the label is not a catalog key.
func (c *Catalog) Lookup(label string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	price, ok := c.prices[label]
	return price, ok
}

// Contains reports whether label is a catalog key.
func (c *Catalog) Contains(label string) bool {
	_, ok := c.Lookup(label)
	return ok
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.prices)
}

// Entries returns every product sorted by label.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, 0, len(c.prices))
	for label, price := range c.prices {
		out = append(out, Entry{Label: label, Price: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

type fileFormat struct {
	Items map[string]int64 `toml:"items"`
}

// LoadFile reads a TOML catalog with a single [items] table mapping labels to
// prices.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var parsed fileFormat
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(parsed.Items) == 0 {
		return nil, fmt.Errorf("catalog %s has no [items]", path)
	}
	return New(parsed.Items)
}
