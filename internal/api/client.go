package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scancart/internal/config"
	"scancart/internal/kiosk"
	"scancart/internal/receipts"
)

// StatusError is returned by Client for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("api: %s (status %d)", msg, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// Client talks to a running kiosk server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient returns a client for baseURL, for example http://127.0.0.1:7480.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig targets api.bind with api.token. Wildcard bind hosts
// are dialed on loopback.
func NewClientFromConfig(cfg *config.Config, opts ...ClientOption) *Client {
	return NewClient(BaseURL(cfg.API.Bind), cfg.API.Token, opts...)
}

// BaseURL converts a listen address to a dialable http URL.
func BaseURL(bind string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return "http://" + strings.TrimSpace(bind)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Status fetches the aggregate kiosk status.
func (c *Client) Status(ctx context.Context) (*kiosk.Status, error) {
	var resp kiosk.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Detection fetches the current detection label.
func (c *Client) Detection(ctx context.Context) (*DetectionResponse, error) {
	var resp DetectionResponse
	if err := c.do(ctx, http.MethodGet, "/api/detection", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cart fetches the cart snapshot.
func (c *Client) Cart(ctx context.Context) (*CartResponse, error) {
	var resp CartResponse
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddItem records one scan of label without going through the camera.
func (c *Client) AddItem(ctx context.Context, label string) (*AddItemResponse, error) {
	var resp AddItemResponse
	if err := c.do(ctx, http.MethodPost, "/api/cart/items", AddItemRequest{Label: label}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) (*ClearResponse, error) {
	var resp ClearResponse
	if err := c.do(ctx, http.MethodPost, "/api/cart/clear", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Catalog fetches the product list.
func (c *Client) Catalog(ctx context.Context) (*CatalogResponse, error) {
	var resp CatalogResponse
	if err := c.do(ctx, http.MethodGet, "/api/catalog", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Checkout starts a payment for the current cart.
func (c *Client) Checkout(ctx context.Context) (*kiosk.Checkout, error) {
	return c.checkout(ctx, http.MethodPost)
}

// CheckoutStatus fetches the current or most recent checkout.
func (c *Client) CheckoutStatus(ctx context.Context) (*kiosk.Checkout, error) {
	return c.checkout(ctx, http.MethodGet)
}

// CancelCheckout aborts a pending payment.
func (c *Client) CancelCheckout(ctx context.Context) (*kiosk.Checkout, error) {
	return c.checkout(ctx, http.MethodDelete)
}

func (c *Client) checkout(ctx context.Context, method string) (*kiosk.Checkout, error) {
	var resp kiosk.Checkout
	if err := c.do(ctx, method, "/api/checkout", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckoutQRCode downloads the payment QR code PNG.
func (c *Client) CheckoutQRCode(ctx context.Context) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/checkout/qr.png", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Receipts lists journaled receipts, newest first. limit <= 0 uses the
// server default.
func (c *Client) Receipts(ctx context.Context, limit int) ([]*receipts.Receipt, error) {
	path := "/api/receipts"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp ReceiptsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Receipts, nil
}

// Receipt fetches one receipt by ID.
func (c *Client) Receipt(ctx context.Context, id string) (*receipts.Receipt, error) {
	var resp receipts.Receipt
	if err := c.do(ctx, http.MethodGet, "/api/receipts/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogQuery selects a page of streamed log events.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	Level     string
}

// Logs fetches a page of log events. With Follow set the request blocks
// until at least one new event exists, so callers should pass a context
// without a short deadline.
func (c *Client) Logs(ctx context.Context, q LogQuery) (*LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if q.Component != "" {
		values.Set("component", q.Component)
	}
	if q.Level != "" {
		values.Set("level", q.Level)
	}
	path := "/api/logs"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}

	client := c
	if q.Follow {
		// Long polls are bounded by ctx, not the default request timeout.
		hc := *c.http
		hc.Timeout = 0
		client = &Client{baseURL: c.baseURL, token: c.token, http: &hc}
	}
	var resp LogStreamResponse
	if err := client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification asks the kiosk to send a test notification.
func (c *Client) TestNotification(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/test", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	statusErr := &StatusError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get(requestIDHeader)}
	var payload ErrorResponse
	if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); readErr == nil {
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			statusErr.Message = payload.Error
		} else {
			statusErr.Message = strings.TrimSpace(string(data))
		}
	}
	return nil, statusErr
}
