// Package logging assembles structured slog loggers and formatting helpers used
// across the kiosk.
//
// It owns the console and JSON handlers, the in-memory StreamHub that backs
// /api/logs, and helpers that keep warning lines shaped the same way
// (event_type, error_hint, impact). NewNop gives tests and optional wiring a
// logger that cannot fail.
package logging
