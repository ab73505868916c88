package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("execution API error (%d): %s", e.Status, e.Body)
}

// HTTPExecutor talks to the venue-neutral execution API: a single POST per
// order, synchronous, one attempt.
type HTTPExecutor struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTP(httpClient *http.Client, baseURL string) *HTTPExecutor {
	if baseURL == "" {
		baseURL = "http://localhost:9010"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPExecutor{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

type orderResponse struct {
	Reference string          `json:"reference"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Notional  decimal.Decimal `json:"notional"`
	Status    string          `json:"status"`
}

func (c *HTTPExecutor) Execute(ctx context.Context, order Order) (*Receipt, error) {
	if !validSide(order.Side) {
		return nil, fmt.Errorf("invalid order side %q", order.Side)
	}
	if order.Instrument == "" || order.Venue == "" {
		return nil, fmt.Errorf("order instrument and venue are required")
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed orderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse execution response: %w", err)
	}
	if parsed.Reference == "" {
		return nil, fmt.Errorf("execution response missing reference")
	}

	return normalizeReceipt(&Receipt{
		Reference: parsed.Reference,
		Price:     parsed.Price,
		Quantity:  parsed.Quantity,
		Notional:  parsed.Notional,
		Status:    parsed.Status,
	}, order), nil
}
