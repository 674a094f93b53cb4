// Package kiosk wires the detection pipeline to the cart and checkout.
//
// A Kiosk owns one catalog, one cart ledger, the scanner loop that feeds the
// debouncer, the simulated payment terminal, and the receipt journal. The API
// server and CLI only ever talk to a Kiosk. Start takes a file lock under the
// state directory so two processes never share a camera.
package kiosk
