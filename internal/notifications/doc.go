// Package notifications pushes kiosk events to an ntfy topic.
//
// When no topic is configured NewService returns a no-op implementation, so
// callers never need to check whether notifications are enabled. Unknown item
// alerts are deduplicated per label inside a configurable window.
package notifications
