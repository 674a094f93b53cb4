// Package catalog holds the static product price table consulted by the
// detection debouncer and the cart ledger.
//
// A Catalog is built once at startup, either from config [catalog.items] or a
// standalone TOML file, and is never mutated afterwards. Lookups use the exact
// classifier label as the key.
package catalog
