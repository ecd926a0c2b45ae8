// Package hub is the chain adapter for the Cosmos hub chain (Noble): bank
// balance queries against the LCD endpoint and simulate/broadcast of
// semantic message batches through the tx gateway.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Config describes the hub chain endpoints.
type Config struct {
	ChainID    string
	LCDURL     string // bank module queries
	GatewayURL string // tx simulate/broadcast gateway
	Denom      string // bridged asset denom, e.g. uusdc
	Timeout    time.Duration
}

// Client talks to the hub chain.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	logger         *zap.Logger
}

// NewClient creates a hub chain client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	cbSettings := gobreaker.Settings{
		Name:        "HubChainAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Hub chain circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		logger:         logger,
	}
}

// Denom returns the bridged asset denom on this chain.
func (c *Client) Denom() string { return c.config.Denom }

// ChainID returns the configured chain identifier.
func (c *Client) ChainID() string { return c.config.ChainID }

// Balances queries all balances of an account.
func (c *Client) Balances(ctx context.Context, address string) ([]Coin, error) {
	url := fmt.Sprintf("%s/cosmos/bank/v1beta1/balances/%s", c.config.LCDURL, address)
	var resp balancesResponse
	if err := c.get(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("query balances of %s: %w", address, err)
	}
	return resp.Balances, nil
}

// Balance returns the balance of one denom, zero if the account holds none.
func (c *Client) Balance(ctx context.Context, address, denom string) (decimal.Decimal, error) {
	balances, err := c.Balances(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	for _, coin := range balances {
		if coin.Denom == denom {
			amount, err := decimal.NewFromString(coin.Amount)
			if err != nil {
				return decimal.Zero, fmt.Errorf("parse balance amount %q: %w", coin.Amount, err)
			}
			return amount, nil
		}
	}
	return decimal.Zero, nil
}

// Simulate runs the message batch through the chain's simulation and returns
// the gas used. Nothing is broadcast.
func (c *Client) Simulate(ctx context.Context, signerAddress string, msgs []Msg, memo string) (uint64, error) {
	req := simulateRequest{Signer: signerAddress, Msgs: wrap(msgs), Memo: memo}
	var resp simulateResponse
	if err := c.post(ctx, c.config.GatewayURL+"/v1/tx/simulate", req, &resp); err != nil {
		return 0, fmt.Errorf("simulate: %w", err)
	}
	return resp.GasInfo.GasUsed, nil
}

// SignAndBroadcast signs the canonical sign-doc for the batch with the given
// signer capability and broadcasts the transaction. The returned TxResponse
// must be checked for a non-zero code by the caller: inclusion with a
// non-zero code is a logical rejection, not a transport failure.
func (c *Client) SignAndBroadcast(ctx context.Context, signer Signer, msgs []Msg, fee Fee) (*TxResponse, error) {
	wrapped := wrap(msgs)
	doc := signDoc{
		ChainID: c.config.ChainID,
		Signer:  signer.Address(),
		Msgs:    wrapped,
		Fee:     fee,
		Memo:    "",
	}
	docBytes, err := doc.bytes()
	if err != nil {
		return nil, fmt.Errorf("marshal sign doc: %w", err)
	}

	signature, err := signer.Sign(ctx, docBytes)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	req := broadcastRequest{
		ChainID:   c.config.ChainID,
		Signer:    signer.Address(),
		Msgs:      wrapped,
		Fee:       fee,
		Memo:      "",
		Signature: signature,
	}
	var resp broadcastResponse
	if err := c.post(ctx, c.config.GatewayURL+"/v1/tx/broadcast", req, &resp); err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}

	c.logger.Info("Broadcast complete",
		zap.String("tx_hash", resp.TxResponse.TxHash),
		zap.Uint32("code", resp.TxResponse.Code),
		zap.Uint64("gas_used", resp.TxResponse.GasUsed))

	return &resp.TxResponse, nil
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
		}
		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return nil, fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

var (
	_ TxClient    = (*Client)(nil)
	_ BankQuerier = (*Client)(nil)
)
