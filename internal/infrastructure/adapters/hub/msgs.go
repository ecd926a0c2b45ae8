package hub

import "encoding/json"

// Msg is one semantic chain message. The adapter ships messages to the tx
// gateway as typed JSON envelopes; protobuf wire encoding happens behind the
// gateway and is out of scope here.
type Msg interface {
	Type() string
}

// Coin is a denominated token amount in base units.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Fee is the transaction fee: an explicit amount plus a gas limit.
type Fee struct {
	Amount   []Coin `json:"amount"`
	GasLimit uint64 `json:"gas_limit"`
}

// MsgDepositForBurn burns USDC on the hub for minting on an EVM domain.
type MsgDepositForBurn struct {
	From              string `json:"from"`
	Amount            string `json:"amount"`
	DestinationDomain uint32 `json:"destination_domain"`
	MintRecipient     []byte `json:"mint_recipient"`
	BurnToken         string `json:"burn_token"`
}

func (MsgDepositForBurn) Type() string { return "circle.cctp.v1.MsgDepositForBurn" }

// MsgReceiveMessage relays an attested burn message to the hub, minting the
// burned amount to the recipient encoded in the message.
type MsgReceiveMessage struct {
	From        string `json:"from"`
	Message     []byte `json:"message"`
	Attestation []byte `json:"attestation"`
}

func (MsgReceiveMessage) Type() string { return "circle.cctp.v1.MsgReceiveMessage" }

// MsgSend is a bank transfer, used as the companion fee payment alongside a
// burn or relay in the same atomic transaction.
type MsgSend struct {
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      []Coin `json:"amount"`
}

func (MsgSend) Type() string { return "cosmos.bank.v1beta1.MsgSend" }

// MsgTransfer is an IBC token transfer from the hub to a counterparty chain.
type MsgTransfer struct {
	SourcePort       string `json:"source_port"`
	SourceChannel    string `json:"source_channel"`
	Token            Coin   `json:"token"`
	Sender           string `json:"sender"`
	Receiver         string `json:"receiver"`
	TimeoutTimestamp uint64 `json:"timeout_timestamp"`
	Memo             string `json:"memo"`
}

func (MsgTransfer) Type() string { return "ibc.applications.transfer.v1.MsgTransfer" }

// envelope is the typed JSON wrapper the gateway expects per message.
type envelope struct {
	Type  string `json:"type"`
	Value Msg    `json:"value"`
}

func wrap(msgs []Msg) []envelope {
	out := make([]envelope, len(msgs))
	for i, m := range msgs {
		out[i] = envelope{Type: m.Type(), Value: m}
	}
	return out
}

// signDoc is the canonical document presented to the signer capability.
// Field order is fixed; json.Marshal preserves struct order, which makes the
// bytes deterministic for a given transaction.
type signDoc struct {
	ChainID string     `json:"chain_id"`
	Signer  string     `json:"signer"`
	Msgs    []envelope `json:"msgs"`
	Fee     Fee        `json:"fee"`
	Memo    string     `json:"memo"`
}

func (d signDoc) bytes() ([]byte, error) {
	return json.Marshal(d)
}
