package hub

import (
	"context"

	"github.com/shopspring/decimal"
)

// Signer is the capability needed to authorize hub-chain transactions. The
// signature covers the canonical sign-doc bytes for the batched messages.
type Signer interface {
	Address() string
	Sign(ctx context.Context, signDoc []byte) ([]byte, error)
}

// TxResponse is the chain's answer to a broadcast. Code 0 means executed;
// any other code means the transaction was included but rejected by the
// state machine, with RawLog carrying the module error.
type TxResponse struct {
	Code    uint32 `json:"code"`
	TxHash  string `json:"txhash"`
	RawLog  string `json:"raw_log"`
	GasUsed uint64 `json:"gas_used"`
}

// balancesResponse mirrors the bank module's balance query response.
type balancesResponse struct {
	Balances []Coin `json:"balances"`
}

// simulateRequest/simulateResponse are the tx gateway's simulate exchange.
type simulateRequest struct {
	Signer string     `json:"signer"`
	Msgs   []envelope `json:"msgs"`
	Memo   string     `json:"memo"`
}

type simulateResponse struct {
	GasInfo struct {
		GasUsed uint64 `json:"gas_used,string"`
	} `json:"gas_info"`
}

// broadcastRequest/broadcastResponse are the tx gateway's broadcast exchange.
type broadcastRequest struct {
	ChainID   string     `json:"chain_id"`
	Signer    string     `json:"signer"`
	Msgs      []envelope `json:"msgs"`
	Fee       Fee        `json:"fee"`
	Memo      string     `json:"memo"`
	Signature []byte     `json:"signature"`
}

type broadcastResponse struct {
	TxResponse TxResponse `json:"tx_response"`
}

// TxClient is the transaction surface services depend on.
type TxClient interface {
	Simulate(ctx context.Context, signerAddress string, msgs []Msg, memo string) (uint64, error)
	SignAndBroadcast(ctx context.Context, signer Signer, msgs []Msg, fee Fee) (*TxResponse, error)
}

// BankQuerier is the read-only balance surface services depend on.
type BankQuerier interface {
	Balances(ctx context.Context, address string) ([]Coin, error)
	Balance(ctx context.Context, address, denom string) (decimal.Decimal, error)
}
