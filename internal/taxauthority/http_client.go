package taxauthority

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mrlokans/taxsync/internal/logging"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyLog     = 512
)

// HTTPConfig configures the registry HTTP client.
type HTTPConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second; 0 disables limiting
	Burst     int
}

// HTTPClient talks JSON to the registry over HTTP.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

// NewHTTPClient creates a registry client.
func NewHTTPClient(cfg HTTPConfig, logger *zap.SugaredLogger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logging.OrNop(logger),
	}
}

// RegisterProduct registers a product under its registration code.
func (c *HTTPClient) RegisterProduct(ctx context.Context, code string, attrs ProductAttributes) (*Decision, error) {
	body := struct {
		Code string `json:"code"`
		ProductAttributes
	}{Code: code, ProductAttributes: attrs}

	var decision Decision
	if err := c.do(ctx, http.MethodPost, "/products", body, &decision); err != nil {
		return nil, err
	}
	return &decision, nil
}

// SubmitInvoice submits an invoice document.
func (c *HTTPClient) SubmitInvoice(ctx context.Context, invoice InvoicePayload) (*Decision, error) {
	var decision Decision
	if err := c.do(ctx, http.MethodPost, "/invoices", invoice, &decision); err != nil {
		return nil, err
	}
	return &decision, nil
}

// CheckStatus fetches the confirmation status of a submitted document.
func (c *HTTPClient) CheckStatus(ctx context.Context, externalRef string) (*StatusResult, error) {
	var result StatusResult
	path := "/documents/" + url.PathEscape(externalRef) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if result.ExternalRef == "" {
		result.ExternalRef = externalRef
	}
	return &result, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("rate limiter: %w", context.DeadlineExceeded)
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("request %s %s: %w", method, path, ctxErr)
		}
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debugw("Tax authority request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// The registry answers a rejected document with 422 and a decision body.
		if d, ok := out.(*Decision); ok {
			if err := json.NewDecoder(resp.Body).Decode(d); err != nil {
				return fmt.Errorf("failed to decode rejection: %w", err)
			}
			d.Accepted = false
			if d.Reason == "" {
				d.Reason = "rejected by tax authority"
			}
			return nil
		}
		return &APIError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readSnippet(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxBodyLog))
	return strings.TrimSpace(string(body))
}
