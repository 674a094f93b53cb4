package api

import (
	"scancart/internal/cart"
	"scancart/internal/catalog"
	"scancart/internal/logging"
	"scancart/internal/receipts"
	"scancart/internal/scanner"
)

// DetectionResponse is served by GET /api/detection.
type DetectionResponse struct {
	Label   string         `json:"label"`
	Scanner scanner.Status `json:"scanner"`
}

// CartResponse is the cart snapshot plus its formatted total.
type CartResponse struct {
	cart.Snapshot
	TotalText string `json:"total_text"`
}

// AddItemRequest is the body of POST /api/cart/items.
type AddItemRequest struct {
	Label string `json:"label"`
}

// AddItemResponse returns the affected line and the updated cart.
type AddItemResponse struct {
	Line cart.Line    `json:"line"`
	Cart CartResponse `json:"cart"`
}

// ClearResponse reports how many lines POST /api/cart/clear removed.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// CatalogResponse lists every product sorted by label.
type CatalogResponse struct {
	Currency string          `json:"currency"`
	Items    []catalog.Entry `json:"items"`
}

// ReceiptsResponse lists journaled receipts, newest first.
type ReceiptsResponse struct {
	Receipts []*receipts.Receipt `json:"receipts"`
}

// LogStreamResponse is served by GET /api/logs. Next is the cursor to pass as
// since on the following request.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
