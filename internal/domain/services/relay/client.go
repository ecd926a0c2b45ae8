// Package relay broadcasts message batches to the hub chain with the
// simulate-then-broadcast discipline: a gas estimate is obtained first, the
// fee is derived from it with a safety multiplier, and nothing is broadcast
// if simulation fails.
package relay

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	derrors "github.com/joltify-bridge/bridge_service/internal/domain/errors"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/hub"
)

const (
	// DefaultGasMultiplier is the safety factor applied to the simulated gas.
	DefaultGasMultiplier = 2
)

// Config tunes the broadcaster.
type Config struct {
	GasMultiplier uint64
	// GasPrice is the price per gas unit in the bridged asset's base denom.
	GasPrice decimal.Decimal
	Denom    string
}

// Client performs simulate-then-broadcast against the hub chain.
type Client struct {
	tx     hub.TxClient
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a broadcaster.
func NewClient(tx hub.TxClient, cfg Config, logger *zap.Logger) *Client {
	if cfg.GasMultiplier == 0 {
		cfg.GasMultiplier = DefaultGasMultiplier
	}
	return &Client{tx: tx, cfg: cfg, logger: logger}
}

// Broadcast simulates msgs, derives the fee, signs and broadcasts. The
// error taxonomy matters here: simulation failures are safe to retry
// (nothing was sent); broadcast transport failures are not automatically
// retried; a non-zero code from an included transaction is a logical
// rejection that must never be silently retried.
func (c *Client) Broadcast(ctx context.Context, signer hub.Signer, msgs []hub.Msg) (*entities.RelayResult, error) {
	gasUsed, err := c.tx.Simulate(ctx, signer.Address(), msgs, "")
	if err != nil {
		return nil, derrors.New(derrors.KindSimulation, "simulation failed", err)
	}

	gasLimit := gasUsed * c.cfg.GasMultiplier
	feeAmount := c.cfg.GasPrice.Mul(decimal.NewFromUint64(gasLimit)).Ceil()
	fee := hub.Fee{
		Amount:   []hub.Coin{{Denom: c.cfg.Denom, Amount: feeAmount.String()}},
		GasLimit: gasLimit,
	}

	c.logger.Debug("Simulation complete",
		zap.Uint64("gas_used", gasUsed),
		zap.Uint64("gas_limit", gasLimit),
		zap.String("fee", feeAmount.String()+c.cfg.Denom))

	resp, err := c.tx.SignAndBroadcast(ctx, signer, msgs, fee)
	if err != nil {
		if errors.Is(err, derrors.ErrSigningRejected) {
			return nil, derrors.New(derrors.KindSigningRejected, "broadcast rejected by signer", err)
		}
		return nil, derrors.New(derrors.KindSubmission, "broadcast failed", err)
	}

	result := &entities.RelayResult{
		TxHash:  resp.TxHash,
		Code:    resp.Code,
		RawLog:  resp.RawLog,
		GasUsed: resp.GasUsed,
	}
	if !result.Success() {
		return result, derrors.New(derrors.KindLogicalRejection,
			fmt.Sprintf("transaction %s included with code %d", resp.TxHash, resp.Code), nil).
			WithDetails(map[string]interface{}{"raw_log": resp.RawLog})
	}
	return result, nil
}

// RelayMint broadcasts the attested burn message to the hub chain, minting
// the burned amount to the recipient encoded in the message.
func (c *Client) RelayMint(ctx context.Context, signer hub.Signer, record entities.AttestationRecord) (*entities.RelayResult, error) {
	if record.Status != entities.AttestationComplete {
		return nil, derrors.New(derrors.KindValidation, "attestation is not complete", nil)
	}
	msg := hub.MsgReceiveMessage{
		From:        signer.Address(),
		Message:     record.Message,
		Attestation: record.Attestation,
	}
	return c.Broadcast(ctx, signer, []hub.Msg{msg})
}

// DecodeHex converts the attestation service's hex strings (with or without
// a 0x prefix) into bytes.
func DecodeHex(s string) ([]byte, error) {
	cleaned := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode hex %q: %w", s, err)
	}
	return raw, nil
}
