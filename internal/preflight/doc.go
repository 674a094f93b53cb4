// Package preflight provides readiness checks for the paths and collaborators
// a kiosk depends on.
//
// `scancart doctor` prints every result. `scancart run` runs the same checks
// at startup and logs failures as warnings: a missing camera or classifier
// degrades the scanner but the API still serves the cart.
package preflight
