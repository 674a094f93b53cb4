// Package scanner runs the detection loop: request one classification, hand
// it to the debouncer, wait, repeat. The loop stops on context cancellation.
package scanner
