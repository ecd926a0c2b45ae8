package evm

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	baseFee  *big.Int
	tipCap   *big.Int
	gasPrice *big.Int

	sent          *types.Transaction
	gasPriceCalls int
	tipCapCalls   int
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return make([]byte, 32), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 60_000, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	f.tipCapCalls++
	return f.tipCap, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.gasPriceCalls++
	return f.gasPrice, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = tx
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

type passthroughSigner struct{}

func (passthroughSigner) Address() common.Address { return common.HexToAddress("0xfeed") }
func (passthroughSigner) SignTx(_ context.Context, tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	return tx, nil
}

func newTestEVMClient(backend ChainBackend) *Client {
	return NewClient(backend, Config{
		Name:                  "Ethereum",
		ChainID:               1,
		USDCAddress:           "0x1111111111111111111111111111111111111111",
		TokenMessengerAddress: "0x2222222222222222222222222222222222222222",
	}, zap.NewNop())
}

func TestSubmitFeeSelection(t *testing.T) {
	var recipient [32]byte
	recipient[31] = 0x42

	t.Run("fee market chain uses a dynamic fee transaction", func(t *testing.T) {
		backend := &fakeBackend{
			baseFee: big.NewInt(10_000_000_000),
			tipCap:  big.NewInt(2_000_000_000),
		}
		client := newTestEVMClient(backend)

		_, err := client.DepositForBurn(context.Background(), passthroughSigner{},
			big.NewInt(25_000_000), 4, recipient)
		require.NoError(t, err)
		require.NotNil(t, backend.sent)

		assert.Equal(t, uint8(types.DynamicFeeTxType), backend.sent.Type())
		// fee cap = tip + 2 * base fee
		assert.Equal(t, big.NewInt(22_000_000_000), backend.sent.GasFeeCap())
		assert.Equal(t, big.NewInt(2_000_000_000), backend.sent.GasTipCap())
		assert.Equal(t, 0, backend.gasPriceCalls)
	})

	t.Run("chain without a base fee falls back to a legacy transaction", func(t *testing.T) {
		backend := &fakeBackend{gasPrice: big.NewInt(5_000_000_000)}
		client := newTestEVMClient(backend)

		_, err := client.DepositForBurn(context.Background(), passthroughSigner{},
			big.NewInt(25_000_000), 4, recipient)
		require.NoError(t, err)
		require.NotNil(t, backend.sent)

		assert.Equal(t, uint8(types.LegacyTxType), backend.sent.Type())
		assert.Equal(t, big.NewInt(5_000_000_000), backend.sent.GasPrice())
		assert.Equal(t, uint64(7), backend.sent.Nonce())
		assert.Equal(t, 0, backend.tipCapCalls)
	})
}
