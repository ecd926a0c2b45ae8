// Package burn submits depositForBurn transactions on either side of the
// bridge and normalizes the result into a BurnReceipt.
package burn

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	derrors "github.com/joltify-bridge/bridge_service/internal/domain/errors"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/evm"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/hub"
	"github.com/joltify-bridge/bridge_service/pkg/addrcodec"
)

// EVMChain is the slice of the EVM adapter the submitter needs.
type EVMChain interface {
	DepositForBurn(ctx context.Context, signer evm.Signer, amount *big.Int, destinationDomain uint32, mintRecipient [addrcodec.RecipientLength]byte) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Broadcaster performs the simulate-then-broadcast exchange on the hub.
type Broadcaster interface {
	Broadcast(ctx context.Context, signer hub.Signer, msgs []hub.Msg) (*entities.RelayResult, error)
}

// Submitter turns a validated transfer request into an on-chain burn.
type Submitter struct {
	evmChains map[string]EVMChain
	hubCaster Broadcaster
	denom     string
	logger    *zap.Logger
}

// NewSubmitter wires the submitter. evmChains is keyed by domain name; the
// hub broadcaster and denom serve the Cosmos leg.
func NewSubmitter(evmChains map[string]EVMChain, hubCaster Broadcaster, denom string, logger *zap.Logger) *Submitter {
	return &Submitter{evmChains: evmChains, hubCaster: hubCaster, denom: denom, logger: logger}
}

// BaseUnits converts a USDC amount to integral base units (6 decimals). A
// fractional result is a validation error, never silently truncated.
func BaseUnits(amount decimal.Decimal) (decimal.Decimal, error) {
	units := amount.Shift(6)
	if !units.Equal(units.Truncate(0)) {
		return decimal.Zero, derrors.New(derrors.KindValidation,
			fmt.Sprintf("amount %s is below base unit precision", amount), nil)
	}
	if !units.IsPositive() {
		return decimal.Zero, derrors.New(derrors.KindValidation,
			fmt.Sprintf("amount %s must be positive", amount), nil)
	}
	return units, nil
}

// SubmitEVM burns on an EVM source chain and waits for the transaction to be
// mined. The returned receipt is the recovery handle for the mint leg.
func (s *Submitter) SubmitEVM(ctx context.Context, source entities.Domain, target entities.Domain, signer evm.Signer, recipient string, amount decimal.Decimal) (*entities.BurnReceipt, error) {
	chain, ok := s.evmChains[source.Name]
	if !ok {
		return nil, derrors.New(derrors.KindValidation, fmt.Sprintf("no chain client for %s", source.Name), nil)
	}
	if !target.HasCircleID {
		return nil, derrors.New(derrors.KindValidation, fmt.Sprintf("%s is not a burn destination", target.Name), nil)
	}

	units, err := BaseUnits(amount)
	if err != nil {
		return nil, err
	}
	mintRecipient, err := addrcodec.EncodeRecipient(recipient)
	if err != nil {
		return nil, derrors.New(derrors.KindValidation, "invalid recipient address", err)
	}

	txHash, err := chain.DepositForBurn(ctx, signer, units.BigInt(), target.CircleID, mintRecipient)
	if err != nil {
		return nil, classifySubmitErr(err)
	}

	s.logger.Info("Burn submitted",
		zap.String("chain", source.Name),
		zap.String("tx_hash", txHash.Hex()),
		zap.String("amount", units.String()))

	receipt := &entities.BurnReceipt{
		SourceDomain: source,
		TxHash:       txHash.Hex(),
		CreatedAt:    time.Now(),
	}

	if _, err := chain.WaitMined(ctx, txHash); err != nil {
		if errors.Is(err, evm.ErrTxReverted) {
			return nil, derrors.New(derrors.KindLogicalRejection, "burn transaction reverted", err)
		}
		// The burn is already in flight and may still land; the receipt is
		// the recovery handle for the mint leg.
		kind := derrors.KindSubmission
		if ctx.Err() != nil {
			kind = derrors.KindCancelled
		}
		return receipt, derrors.NewRecoverable(kind, "burn confirmation interrupted", err)
	}

	return receipt, nil
}

// SubmitCosmos burns on the hub for minting on an EVM chain. The burn and
// the relay-fee payment to the minter go out in one transaction so neither
// lands without the other.
func (s *Submitter) SubmitCosmos(ctx context.Context, target entities.Domain, signer hub.Signer, recipient string, amount, relayFee decimal.Decimal, minter string) (*entities.BurnReceipt, *entities.RelayResult, error) {
	if !target.HasCircleID {
		return nil, nil, derrors.New(derrors.KindValidation, fmt.Sprintf("%s is not a burn destination", target.Name), nil)
	}

	units, err := BaseUnits(amount)
	if err != nil {
		return nil, nil, err
	}
	mintRecipient, err := addrcodec.EncodeRecipient(recipient)
	if err != nil {
		return nil, nil, derrors.New(derrors.KindValidation, "invalid recipient address", err)
	}

	msgs := []hub.Msg{
		hub.MsgDepositForBurn{
			From:              signer.Address(),
			Amount:            units.String(),
			DestinationDomain: target.CircleID,
			MintRecipient:     mintRecipient[:],
			BurnToken:         s.denom,
		},
	}
	if relayFee.IsPositive() && minter != "" {
		msgs = append(msgs, hub.MsgSend{
			FromAddress: signer.Address(),
			ToAddress:   minter,
			Amount:      []hub.Coin{{Denom: s.denom, Amount: relayFee.Truncate(0).String()}},
		})
	}

	result, err := s.hubCaster.Broadcast(ctx, signer, msgs)
	if err != nil {
		return nil, result, err
	}

	s.logger.Info("Hub burn submitted",
		zap.String("tx_hash", result.TxHash),
		zap.String("amount", units.String()),
		zap.String("relay_fee", relayFee.String()))

	return &entities.BurnReceipt{
		SourceDomain: entities.DomainNoble,
		TxHash:       result.TxHash,
		CreatedAt:    time.Now(),
	}, result, nil
}

func classifySubmitErr(err error) error {
	if derrors.KindOf(err) == derrors.KindSigningRejected {
		return err
	}
	return derrors.New(derrors.KindSubmission, "burn submission failed", err)
}
