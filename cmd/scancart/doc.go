// Command scancart runs the self-checkout kiosk and talks to a running one.
//
// `scancart run` owns the camera, the cart, and the HTTP API. Every other
// command except `replay`, `doctor`, `catalog`, and `config` is a thin client
// of that API, so it works from any shell on the kiosk host.
package main
