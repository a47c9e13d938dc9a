package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
)

// HTTPConfig параметры HTTP клиента провайдера
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration // на одну попытку
	RetryDelay time.Duration
}

// HTTPGateway JSON-over-HTTP клиент провайдера.
// Каждая попытка ограничена Timeout; сетевые ошибки, 5xx и 429 повторяются один раз.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	retryDelay time.Duration
	client     *http.Client
	logger     *zap.Logger
}

// NewHTTPGateway создаёт клиент провайдера
func NewHTTPGateway(cfg HTTPConfig, client *http.Client, logger *zap.Logger) *HTTPGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		retryDelay: cfg.RetryDelay,
		client:     client,
		logger:     logger,
	}
}

type chargeRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

type chargeResponse struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// StatusError ответ провайдера с кодом 4xx
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.Code, e.Body)
}

// Authorize implements Gateway.
func (g *HTTPGateway) Authorize(ctx context.Context, amount int64, currency string, metadata map[string]string) (string, error) {
	key := metadata[MetadataIdempotencyKey]
	if key == "" {
		key = uuid.NewString()
	}

	var resp chargeResponse
	err := g.do(ctx, "authorize", http.MethodPost, "/charges", key, chargeRequest{
		Amount:   amount,
		Currency: currency,
		Metadata: metadata,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("authorize charge: %w", err)
	}
	if resp.Status == StatusFailed {
		return "", ErrDeclined
	}
	if resp.ID == "" {
		return "", fmt.Errorf("authorize charge: empty payment reference")
	}

	return resp.ID, nil
}

// Confirm implements Gateway.
func (g *HTTPGateway) Confirm(ctx context.Context, ref string) (Status, error) {
	var resp chargeResponse
	if err := g.do(ctx, "confirm", http.MethodGet, "/charges/"+url.PathEscape(ref), "", nil, &resp); err != nil {
		return "", fmt.Errorf("confirm charge: %w", err)
	}
	return resp.Status, nil
}

// Refund implements Gateway.
func (g *HTTPGateway) Refund(ctx context.Context, ref string, amount int64, reason string) (Status, error) {
	var resp chargeResponse
	err := g.do(ctx, "refund", http.MethodPost, "/charges/"+url.PathEscape(ref)+"/refunds", ref+":refund", refundRequest{
		Amount: amount,
		Reason: reason,
	}, &resp)
	if err != nil {
		return StatusFailed, fmt.Errorf("refund charge: %w", err)
	}
	return resp.Status, nil
}

func (g *HTTPGateway) do(ctx context.Context, op, method, path, idempotencyKey string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	attempt := 0
	backoff := retry.WithMaxRetries(1, retry.NewConstant(g.retryDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, method, g.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if g.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+g.apiKey)
		}
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			g.logger.Warn("Payment gateway request failed",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read response: %w", err))
		}

		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			g.logger.Warn("Payment gateway transient status",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode),
			)
			return retry.RetryableError(&StatusError{Code: resp.StatusCode, Body: string(raw)})
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return &StatusError{Code: resp.StatusCode, Body: string(raw)}
		}

		if out != nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	})

	metrics.GatewayCalls.WithLabelValues(op, metrics.Outcome(err)).Inc()
	return err
}
