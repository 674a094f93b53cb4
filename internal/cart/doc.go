// Package cart implements the cart ledger fed by the detection debouncer.
//
// The ledger is an ordered, name-unique list of lines. Prices are read from
// the catalog exactly once, when a product is first scanned, and never
// refreshed. There is no per-line removal; the only way to shrink the cart is
// Clear.
package cart
