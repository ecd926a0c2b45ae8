package evm

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer is the capability needed to sign transactions on an EVM domain.
// Implementations are injected by the caller; the adapter never reaches for
// ambient wallet state.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Config describes one EVM network and its bridge contracts.
type Config struct {
	Name                  string
	RPC                   string
	ChainID               int64
	USDCAddress           string
	TokenMessengerAddress string
	ReceiptPollInterval   time.Duration
	ReceiptTimeout        time.Duration
}

// SubmittedTx is the reference to a submitted transaction before it is mined.
type SubmittedTx struct {
	Hash common.Hash
}
