// Package allowance checks and raises the ERC-20 allowance granted to the
// bridge contract before an EVM burn can be submitted.
package allowance

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	derrors "github.com/joltify-bridge/bridge_service/internal/domain/errors"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/evm"
)

// ChainClient is the EVM surface the manager needs, one per source network.
type ChainClient interface {
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, signer evm.Signer, spender common.Address, amount *big.Int) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TokenMessengerAddress() common.Address
}

// State is the derived allowance view for one check. Recomputed on demand,
// never stored.
type State struct {
	Current  *big.Int
	Required *big.Int
}

// Sufficient reports whether the current allowance covers the requirement.
func (s State) Sufficient() bool {
	return s.Current.Cmp(s.Required) >= 0
}

// Manager raises allowances across the configured EVM networks.
type Manager struct {
	chains map[string]ChainClient
	logger *zap.Logger
}

// NewManager creates a manager over the given per-domain chain clients.
func NewManager(chains map[string]ChainClient, logger *zap.Logger) *Manager {
	return &Manager{chains: chains, logger: logger}
}

// Check returns the allowance state for owner on the named domain, with the
// bridge contract as spender.
func (m *Manager) Check(ctx context.Context, domainName string, owner common.Address, required *big.Int) (State, error) {
	chain, ok := m.chains[domainName]
	if !ok {
		return State{}, derrors.New(derrors.KindValidation, "unknown EVM domain "+domainName, nil)
	}
	current, err := chain.Allowance(ctx, owner, chain.TokenMessengerAddress())
	if err != nil {
		return State{}, derrors.New(derrors.KindAllowance, "allowance check failed", err)
	}
	return State{Current: current, Required: required}, nil
}

// Ensure raises the allowance to required if it is currently below it. The
// approval is never retried automatically: retrying with a stale amount
// could double-approve.
func (m *Manager) Ensure(ctx context.Context, domainName string, signer evm.Signer, required *big.Int) error {
	state, err := m.Check(ctx, domainName, signer.Address(), required)
	if err != nil {
		return err
	}
	if state.Sufficient() {
		m.logger.Debug("Allowance sufficient",
			zap.String("domain", domainName),
			zap.String("current", state.Current.String()),
			zap.String("required", required.String()))
		return nil
	}

	chain := m.chains[domainName]
	m.logger.Info("Raising allowance",
		zap.String("domain", domainName),
		zap.String("current", state.Current.String()),
		zap.String("required", required.String()))

	txHash, err := chain.Approve(ctx, signer, chain.TokenMessengerAddress(), required)
	if err != nil {
		if errors.Is(err, derrors.ErrSigningRejected) {
			return derrors.New(derrors.KindSigningRejected, "approval rejected by signer", err)
		}
		return derrors.New(derrors.KindAllowance, "approval submission failed", err)
	}

	if _, err := chain.WaitMined(ctx, txHash); err != nil {
		return derrors.New(derrors.KindAllowance, "approval transaction failed", err).
			WithDetails(map[string]interface{}{"tx_hash": txHash.Hex()})
	}

	m.logger.Info("Allowance raised",
		zap.String("domain", domainName),
		zap.String("tx_hash", txHash.Hex()))
	return nil
}
