// Package matching is the HTTP adapter for the external invoice to purchase
// order matching service.
package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// maxResponseSize caps how much of a matching response is read (1MB)
const maxResponseSize = 1 << 20

// ErrNotConfigured is returned when no base URL is set
var ErrNotConfigured = errors.New("matching: base URL not configured")

// Config holds the client settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the matching service over HTTP
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient creates a client. The base URL must be absolute.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("matching: invalid base URL %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: base, httpClient: &http.Client{Timeout: timeout}}, nil
}

type acceptRequest struct {
	POID uuid.UUID `json:"poId"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// AttemptMatch requests candidate purchase orders for an invoice
func (c *Client) AttemptMatch(ctx context.Context, tenantID, invoiceID uuid.UUID) (*cvr.MatchResult, error) {
	var result cvr.MatchResult
	if err := c.do(ctx, tenantID, "/invoices/"+invoiceID.String()+"/match-attempts", nil, &result); err != nil {
		return nil, err
	}
	if result.Candidates == nil {
		result.Candidates = []cvr.MatchCandidate{}
	}
	return &result, nil
}

// AcceptMatch confirms a purchase order for an invoice
func (c *Client) AcceptMatch(ctx context.Context, tenantID, poID, invoiceID uuid.UUID) error {
	return c.do(ctx, tenantID, "/invoices/"+invoiceID.String()+"/match-acceptance", acceptRequest{POID: poID}, nil)
}

func (c *Client) do(ctx context.Context, tenantID uuid.UUID, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("matching: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("matching: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("matching: %w: %v", shared.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("matching: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, payload)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("matching: decode response: %w", err)
	}
	return nil
}

func statusError(status int, payload []byte) error {
	var er errorResponse
	_ = json.Unmarshal(payload, &er)
	msg := er.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("matching: %s: %w", msg, shared.ErrNotFound)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		code := er.Error.Code
		if code == "" {
			code = "INVALID_INPUT"
		}
		return shared.NewDomainError(code, msg)
	case status == http.StatusConflict:
		return fmt.Errorf("matching: %s: %w", msg, shared.ErrConcurrencyConflict)
	case status >= 500:
		return fmt.Errorf("matching: status %d: %s: %w", status, msg, shared.ErrUnavailable)
	}
	return fmt.Errorf("matching: unexpected status %d: %s", status, msg)
}

var _ cvr.InvoiceMatcher = (*Client)(nil)
