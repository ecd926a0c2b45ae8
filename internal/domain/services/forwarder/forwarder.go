// Package forwarder builds and broadcasts the IBC transfer that moves
// bridged funds from the hub chain to the secondary chain. A small reserve
// is always left behind on the hub to cover later relay fees.
package forwarder

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	derrors "github.com/joltify-bridge/bridge_service/internal/domain/errors"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/hub"
)

const (
	// SourcePort is fixed by the IBC transfer application.
	SourcePort = "transfer"

	// DefaultReserve is the buffer left on the hub account, in base units.
	DefaultReserve = 50_000

	// DefaultTimeoutWindow bounds how long the IBC packet stays valid.
	DefaultTimeoutWindow = 10 * time.Minute
)

// Broadcaster performs the simulate-then-broadcast exchange.
type Broadcaster interface {
	Broadcast(ctx context.Context, signer hub.Signer, msgs []hub.Msg) (*entities.RelayResult, error)
}

// Config tunes the forwarder.
type Config struct {
	SourceChannel string
	Denom         string
	Reserve       decimal.Decimal
	TimeoutWindow time.Duration
}

// Forwarder sends funds from the hub to the secondary chain over IBC.
type Forwarder struct {
	broadcaster Broadcaster
	bank        hub.BankQuerier
	cfg         Config
	logger      *zap.Logger
}

// NewForwarder creates a forwarder. Zero config fields get the reference
// defaults.
func NewForwarder(broadcaster Broadcaster, bank hub.BankQuerier, cfg Config, logger *zap.Logger) *Forwarder {
	if cfg.Reserve.IsZero() {
		cfg.Reserve = decimal.NewFromInt(DefaultReserve)
	}
	if cfg.TimeoutWindow == 0 {
		cfg.TimeoutWindow = DefaultTimeoutWindow
	}
	return &Forwarder{broadcaster: broadcaster, bank: bank, cfg: cfg, logger: logger}
}

// SendableAmount computes how much can actually be forwarded: the desired
// amount, capped by what the balance allows after keeping the reserve. A
// non-positive result means the forward must be skipped.
func SendableAmount(available, reserve, desired decimal.Decimal) decimal.Decimal {
	spendable := available.Sub(reserve)
	if desired.LessThan(spendable) {
		return desired
	}
	return spendable
}

// Forward broadcasts one IBC transfer of up to desired base units from
// sender on the hub to receiver on the secondary chain. If the sendable
// amount after the reserve is non-positive the forward is skipped with an
// insufficient-balance error; nothing is broadcast.
func (f *Forwarder) Forward(ctx context.Context, signer hub.Signer, sender, receiver string, desired decimal.Decimal) (*entities.RelayResult, error) {
	available, err := f.bank.Balance(ctx, sender, f.cfg.Denom)
	if err != nil {
		return nil, derrors.New(derrors.KindSubmission, "balance query failed", err)
	}

	sendable := SendableAmount(available, f.cfg.Reserve, desired)
	if !sendable.IsPositive() {
		return nil, derrors.New(derrors.KindInsufficientBalance,
			fmt.Sprintf("balance %s leaves nothing to forward after %s reserve", available, f.cfg.Reserve), nil).
			WithDetails(map[string]interface{}{
				"available": available.String(),
				"reserve":   f.cfg.Reserve.String(),
				"desired":   desired.String(),
			})
	}

	msg := hub.MsgTransfer{
		SourcePort:       SourcePort,
		SourceChannel:    f.cfg.SourceChannel,
		Token:            hub.Coin{Denom: f.cfg.Denom, Amount: sendable.String()},
		Sender:           sender,
		Receiver:         receiver,
		TimeoutTimestamp: uint64(time.Now().Add(f.cfg.TimeoutWindow).UnixNano()),
	}

	f.logger.Info("Forwarding over IBC",
		zap.String("channel", f.cfg.SourceChannel),
		zap.String("amount", sendable.String()+f.cfg.Denom),
		zap.String("receiver", receiver))

	return f.broadcaster.Broadcast(ctx, signer, []hub.Msg{msg})
}
