package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"scancart/internal/cart"
	"scancart/internal/config"
	"scancart/internal/kiosk"
	"scancart/internal/logging"
	"scancart/internal/receipts"
)

const (
	defaultReceiptLimit = 50
	defaultLogLimit     = 200
)

// Server exposes a kiosk over HTTP.
type Server struct {
	bind   string
	token  string
	logger *slog.Logger
	kiosk  *kiosk.Kiosk
	stream *logging.StreamHub

	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// NewServer builds the handler tree. stream may be nil, in which case
// /api/logs always returns an empty page.
func NewServer(cfg *config.Config, k *kiosk.Kiosk, stream *logging.StreamHub, logger *slog.Logger) *Server {
	s := &Server{
		bind:   strings.TrimSpace(cfg.API.Bind),
		token:  cfg.API.Token,
		logger: logging.NewComponentLogger(logger, "api"),
		kiosk:  k,
		stream: stream,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/detection", s.handleDetection)
	mux.HandleFunc("/api/cart", s.handleCart)
	mux.HandleFunc("/api/cart/items", s.handleCartItems)
	mux.HandleFunc("/api/cart/clear", s.handleCartClear)
	mux.HandleFunc("/api/catalog", s.handleCatalog)
	mux.HandleFunc("/api/checkout", s.handleCheckout)
	mux.HandleFunc("/api/checkout/qr.png", s.handleCheckoutQR)
	mux.HandleFunc("/api/receipts", s.handleReceipts)
	mux.HandleFunc("/api/receipts/", s.handleReceipt)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/notifications/test", s.handleTestNotification)

	s.handler = requestMiddleware(s.logger, authMiddleware(s.token, mux))
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured bind address and serves until ctx ends or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
		logging.String(logging.FieldEventType, "api_listening"),
	)
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down. It is safe to call more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.kiosk.Status(r.Context()))
}

func (s *Server) handleDetection(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, DetectionResponse{
		Label:   s.kiosk.CurrentDetection(),
		Scanner: s.kiosk.Status(r.Context()).Scanner,
	})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.cartResponse())
}

func (s *Server) handleCartItems(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	var req AddItemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		s.writeError(w, r, http.StatusBadRequest, "label is required")
		return
	}
	line, err := s.kiosk.AddItem(label)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("item added manually",
		logging.String(logging.FieldLabel, label),
		logging.Int("quantity", line.Quantity),
		logging.String(logging.FieldEventType, "item_added_manually"),
	)
	s.writeJSON(w, http.StatusOK, AddItemResponse{Line: line, Cart: s.cartResponse()})
}

func (s *Server) handleCartClear(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	s.writeJSON(w, http.StatusOK, ClearResponse{Removed: s.kiosk.ClearCart()})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, CatalogResponse{
		Currency: s.kiosk.Currency(),
		Items:    s.kiosk.Catalog(),
	})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var (
		checkout kiosk.Checkout
		err      error
		status   = http.StatusOK
	)
	switch r.Method {
	case http.MethodGet:
		checkout, err = s.kiosk.CheckoutStatus()
	case http.MethodPost:
		checkout, err = s.kiosk.Checkout(r.Context())
		status = http.StatusCreated
	case http.MethodDelete:
		checkout, err = s.kiosk.CancelCheckout()
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, status, checkout)
}

func (s *Server) handleCheckoutQR(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	png, err := s.kiosk.CheckoutQRCode()
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	limit := defaultReceiptLimit
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	list, err := s.kiosk.Receipts(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ReceiptsResponse{Receipts: list})
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/receipts/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, r, http.StatusNotFound, "receipt not found")
		return
	}
	receipt, err := s.kiosk.Receipt(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	if err := s.kiosk.TestNotification(r.Context()); err != nil {
		s.writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	if s.stream == nil {
		s.writeJSON(w, http.StatusOK, LogStreamResponse{Events: []logging.LogEvent{}})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := parseBool(query.Get("follow"))
	tail := parseBool(query.Get("tail"))
	component := strings.TrimSpace(query.Get("component"))
	level := strings.TrimSpace(query.Get("level"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = s.stream.Tail(limit)
	} else {
		var err error
		events, next, err = s.stream.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
	}

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if level != "" && !strings.EqualFold(level, evt.Level) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, LogStreamResponse{Events: filtered, Next: next})
}

func (s *Server) cartResponse() CartResponse {
	snapshot := s.kiosk.CartSnapshot()
	if snapshot.Lines == nil {
		snapshot.Lines = []cart.Line{}
	}
	return CartResponse{Snapshot: snapshot, TotalText: s.kiosk.FormatAmount(snapshot.Total)}
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// writeFailure maps kiosk and journal errors onto HTTP status codes.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case kiosk.IsConflict(err):
		status = http.StatusConflict
	case errors.Is(err, kiosk.ErrNoCheckout), errors.Is(err, receipts.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cart.ErrUnknownItem):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeError(w, r, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(s.logger, w, status, payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message, RequestID: w.Header().Get(requestIDHeader)})
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

func parseBool(value string) bool {
	value = strings.TrimSpace(value)
	return value == "1" || strings.EqualFold(value, "true")
}
