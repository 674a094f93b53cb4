// Package payment simulates the checkout terminal. A session shows a QR code
// carrying the amount and reports completion after a fixed delay.
package payment
