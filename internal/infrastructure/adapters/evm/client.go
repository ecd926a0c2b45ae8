// Package evm is the chain adapter for EVM source domains: ERC-20 allowance
// management and the TokenMessenger deposit-for-burn entry point, called
// through raw selectors so no generated bindings are needed.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	defaultReceiptPollInterval = 3 * time.Second
	defaultReceiptTimeout      = 5 * time.Minute
)

// ErrTxReverted indicates a transaction was mined but reverted.
var ErrTxReverted = errors.New("transaction reverted")

// ChainBackend is the subset of the Ethereum RPC surface the adapter uses.
// *ethclient.Client satisfies it; tests provide a fake.
type ChainBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client wraps one EVM network's RPC endpoint and its bridge contracts.
type Client struct {
	backend   ChainBackend
	cfg       Config
	chainID   *big.Int
	usdc      common.Address
	messenger common.Address
	logger    *zap.Logger
}

// Dial connects to the configured RPC endpoint.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPC)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", cfg.Name, err)
	}
	return NewClient(eth, cfg, logger), nil
}

// NewClient wraps an existing backend, mainly for tests.
func NewClient(backend ChainBackend, cfg Config, logger *zap.Logger) *Client {
	if cfg.ReceiptPollInterval == 0 {
		cfg.ReceiptPollInterval = defaultReceiptPollInterval
	}
	if cfg.ReceiptTimeout == 0 {
		cfg.ReceiptTimeout = defaultReceiptTimeout
	}
	return &Client{
		backend:   backend,
		cfg:       cfg,
		chainID:   big.NewInt(cfg.ChainID),
		usdc:      common.HexToAddress(cfg.USDCAddress),
		messenger: common.HexToAddress(cfg.TokenMessengerAddress),
		logger:    logger,
	}
}

// USDCAddress returns the burn token contract address on this network.
func (c *Client) USDCAddress() common.Address { return c.usdc }

// TokenMessengerAddress returns the bridge contract address on this network.
func (c *Client) TokenMessengerAddress() common.Address { return c.messenger }

// Allowance reads the ERC-20 allowance granted by owner to spender on the
// USDC contract.
func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &c.usdc,
		Data: allowanceCalldata(owner, spender),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("allowance call on %s: %w", c.cfg.Name, err)
	}
	if len(result) < evmWordLength {
		return nil, fmt.Errorf("allowance call on %s: short result (%d bytes)", c.cfg.Name, len(result))
	}
	return new(big.Int).SetBytes(result[:evmWordLength]), nil
}

// Approve submits an ERC-20 approve(spender, amount) on the USDC contract
// and returns the transaction hash without waiting for inclusion.
func (c *Client) Approve(ctx context.Context, signer Signer, spender common.Address, amount *big.Int) (common.Hash, error) {
	return c.submit(ctx, signer, c.usdc, approveCalldata(spender, amount))
}

// DepositForBurn submits the TokenMessenger deposit-for-burn call and
// returns the transaction hash without waiting for inclusion.
func (c *Client) DepositForBurn(ctx context.Context, signer Signer, amount *big.Int, destinationDomain uint32, mintRecipient [32]byte) (common.Hash, error) {
	c.logger.Info("Submitting depositForBurn",
		zap.String("chain", c.cfg.Name),
		zap.String("amount", amount.String()),
		zap.Uint32("destination_domain", destinationDomain))
	return c.submit(ctx, signer, c.messenger, depositForBurnCalldata(amount, destinationDomain, mintRecipient, c.usdc))
}

func (c *Client) submit(ctx context.Context, signer Signer, to common.Address, data []byte) (common.Hash, error) {
	from := signer.Address()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tipCap, err := c.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   c.chainID,
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     new(big.Int),
			Data:      data,
		})
	} else {
		// No fee market on this chain; fall back to a legacy transaction.
		gasPrice, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    new(big.Int),
			Data:     data,
		})
	}

	signed, err := signer.SignTx(ctx, tx, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return signed.Hash(), nil
}

// WaitMined polls for the receipt of txHash until it is mined or the
// configured timeout elapses. A mined-but-reverted transaction returns
// ErrTxReverted.
func (c *Client) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("tx %s: %w", txHash.Hex(), ErrTxReverted)
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug("Receipt lookup failed, retrying",
				zap.String("tx_hash", txHash.Hex()),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for tx %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
