// Package relayapi is the HTTP client for the bridge backend: the route/fee
// parameter table fetched once per session, and the mint-on-evm callback
// that completes hub-to-EVM transfers off-chain.
package relayapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/iris"
)

const defaultTimeout = 30 * time.Second

// Config represents relay backend configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the bridge backend.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a relay backend client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// RouteParams is the per-session route and fee table.
type RouteParams struct {
	Minter       string        `json:"minter"`
	TargetChains []TargetChain `json:"targetChains"`
}

// TargetChain holds the fee and expected arrival time for one destination.
type TargetChain struct {
	ChainName string `json:"chainName"`
	Fee       string `json:"fee"` // base units of the bridged asset
	Time      string `json:"time"`
	Domain    uint32 `json:"domain"`
}

// FetchRouteParams loads the route/fee table from the backend.
func (c *Client) FetchRouteParams(ctx context.Context) (*RouteParams, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/cctp-params", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var params RouteParams
	if err := c.do(req, &params); err != nil {
		return nil, fmt.Errorf("fetch route params: %w", err)
	}
	return &params, nil
}

// MintResult is the backend's answer to a mint-on-evm request.
type MintResult struct {
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Succeeded reports whether the backend executed the mint.
func (r MintResult) Succeeded() bool { return r.Status == 1 }

// MintOnEVM asks the backend to execute the EVM mint for an attested hub
// burn. Used for hub-to-EVM transfers whose final leg runs off-chain.
func (c *Client) MintOnEVM(ctx context.Context, messages []iris.Message, txHash string) (*MintResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"messages":        messages,
		"transactionHash": txHash,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal mint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/mint-on-evm", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result MintResult
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("mint on evm: %w", err)
	}

	c.logger.Info("Mint-on-evm response",
		zap.String("tx_hash", txHash),
		zap.Int("status", result.Status))

	return &result, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
