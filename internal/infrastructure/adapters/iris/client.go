// Package iris is the HTTP client for Circle's attestation service. It only
// reads: a burn on a source domain is keyed by (domain ID, tx hash) and the
// service eventually answers with the signed attestation for the message.
package iris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
)

// Config represents attestation client configuration.
type Config struct {
	BaseURL     string
	Environment string // "sandbox" or "mainnet"
	Timeout     time.Duration
}

// Client represents an attestation service API client.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

// NewClient creates a new attestation service client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.BaseURL == "" {
		if config.Environment == "mainnet" {
			config.BaseURL = MainnetURL
		} else {
			config.BaseURL = SandboxURL
		}
	}

	cbSettings := gobreaker.Settings{
		Name:        "AttestationAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Attestation circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(MaxRequestsPerSecond), 1),
		logger:         logger,
	}
}

// GetMessages fetches the messages for a burn transaction, keyed by the
// Circle domain ID of the source chain and the burn tx hash. A 404 returns
// ErrNoMessages so callers can treat it as pending rather than a failure.
func (c *Client) GetMessages(ctx context.Context, sourceDomainID uint32, txHash string) (*MessagesResponse, error) {
	endpoint := fmt.Sprintf("/v1/messages/%d/%s", sourceDomainID, txHash)
	var resp MessagesResponse
	if err := c.doRequest(ctx, endpoint, &resp); err != nil {
		var apiErr *ErrorResponse
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, ErrNoMessages
		}
		return nil, fmt.Errorf("get messages failed: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, ErrNoMessages
	}
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, response interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	// A 404 is the service's routine "not attested yet" answer and must not
	// count against the breaker; only transport and server failures do.
	out, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		err := c.doRequestInternal(ctx, endpoint, response)
		var apiErr *ErrorResponse
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return err, nil
		}
		return nil, err
	})
	if err != nil {
		return err
	}
	if pending, ok := out.(error); ok {
		return pending
	}
	return nil
}

func (c *Client) doRequestInternal(ctx context.Context, endpoint string, response interface{}) error {
	fullURL := c.config.BaseURL + endpoint

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		// Retry on 5xx
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			var errResp ErrorResponse
			if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
				errResp.StatusCode = resp.StatusCode
				return &errResp
			}
			return &ErrorResponse{StatusCode: resp.StatusCode, Message: string(body)}
		}

		if response != nil && len(body) > 0 {
			if err := json.Unmarshal(body, response); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}
