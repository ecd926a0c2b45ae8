package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DomainKind distinguishes the two families of chains the bridge spans.
type DomainKind string

const (
	DomainKindEVM    DomainKind = "evm"
	DomainKindCosmos DomainKind = "cosmos"
)

// Domain represents one blockchain network recognized by the bridge.
// CircleID is the Circle-assigned domain number; chains that are only
// reachable over IBC (no direct Circle support) carry HasCircleID=false.
type Domain struct {
	Name        string     `json:"name"`
	Kind        DomainKind `json:"kind"`
	CircleID    uint32     `json:"circle_id"`
	HasCircleID bool       `json:"has_circle_id"`
	Hub         bool       `json:"hub"`
}

func (d Domain) IsEVM() bool    { return d.Kind == DomainKindEVM }
func (d Domain) IsCosmos() bool { return d.Kind == DomainKindCosmos }

// Supported domains. Circle IDs per developers.circle.com/stablecoins/docs/supported-domains.
var (
	DomainEthereum  = Domain{Name: "Ethereum", Kind: DomainKindEVM, CircleID: 0, HasCircleID: true}
	DomainAvalanche = Domain{Name: "Avalanche", Kind: DomainKindEVM, CircleID: 1, HasCircleID: true}
	DomainArbitrum  = Domain{Name: "Arbitrum", Kind: DomainKindEVM, CircleID: 3, HasCircleID: true}
	DomainNoble     = Domain{Name: "Noble", Kind: DomainKindCosmos, CircleID: 4, HasCircleID: true, Hub: true}
	DomainJoltify   = Domain{Name: "Joltify", Kind: DomainKindCosmos}
)

// DomainByName maps a chain name to its Domain definition.
var DomainByName = map[string]Domain{
	DomainEthereum.Name:  DomainEthereum,
	DomainAvalanche.Name: DomainAvalanche,
	DomainArbitrum.Name:  DomainArbitrum,
	DomainNoble.Name:     DomainNoble,
	DomainJoltify.Name:   DomainJoltify,
}

// TransferRequest is the immutable input to the orchestrator. Amount is in
// USDC units (6 decimals applied at the chain boundary). SignerHandle is an
// opaque reference resolved to a signer capability by the caller wiring.
type TransferRequest struct {
	ID           uuid.UUID       `json:"id"`
	SourceDomain Domain          `json:"source_domain"`
	TargetDomain Domain          `json:"target_domain"`
	Recipient    string          `json:"recipient"`
	Amount       decimal.Decimal `json:"amount"`
	SignerHandle string          `json:"signer_handle,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BurnReceipt is the durable handle to a submitted burn. It is retained for
// the lifetime of the transfer so the mint leg can be retried after a
// partial completion.
type BurnReceipt struct {
	SourceDomain Domain    `json:"source_domain"`
	TxHash       string    `json:"tx_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// AttestationStatus classifies the attestation service's answer for a burn.
type AttestationStatus string

const (
	AttestationPending  AttestationStatus = "pending"
	AttestationComplete AttestationStatus = "complete"
	AttestationNotFound AttestationStatus = "not_found"
)

// AttestationRecord is the result of one attestation poll. Records are
// superseded by re-polling, never mutated in place.
type AttestationRecord struct {
	Status      AttestationStatus `json:"status"`
	Message     []byte            `json:"message,omitempty"`
	Attestation []byte            `json:"attestation,omitempty"`
}

// RelayResult is the outcome of a broadcast to a Cosmos chain. Code 0 means
// the transaction was included and executed; any other code means it was
// included but rejected by the chain's state machine.
type RelayResult struct {
	TxHash  string `json:"tx_hash"`
	Code    uint32 `json:"code"`
	RawLog  string `json:"raw_log,omitempty"`
	GasUsed uint64 `json:"gas_used,omitempty"`
}

func (r RelayResult) Success() bool { return r.Code == 0 }

// TransferStatus is the orchestrator state machine's state. Transitions only
// move forward or into Failed.
type TransferStatus string

const (
	StatusIdle              TransferStatus = "idle"
	StatusCheckingAllowance TransferStatus = "checking_allowance"
	StatusApproving         TransferStatus = "approving"
	StatusDepositing        TransferStatus = "depositing"
	StatusAwaitingAttest    TransferStatus = "awaiting_attestation"
	StatusRelayingMint      TransferStatus = "relaying_mint"
	StatusAwaitingCredit    TransferStatus = "awaiting_intermediate_credit"
	StatusForwardingIBC     TransferStatus = "forwarding_ibc"
	StatusCompleted         TransferStatus = "completed"
	StatusFailed            TransferStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s TransferStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// stateRank orders states so transitions can be validated as forward-only.
var stateRank = map[TransferStatus]int{
	StatusIdle:              0,
	StatusCheckingAllowance: 1,
	StatusApproving:         2,
	StatusDepositing:        3,
	StatusAwaitingAttest:    4,
	StatusRelayingMint:      5,
	StatusAwaitingCredit:    6,
	StatusForwardingIBC:     7,
	StatusCompleted:         8,
	StatusFailed:            9,
}

// CanTransitionTo validates a state transition: forward-only, with Failed
// reachable from every non-terminal state.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return stateRank[next] > stateRank[s]
}

// TransferState is the single mutable entity owned by the orchestrator for
// one in-flight TransferRequest.
type TransferState struct {
	Request     TransferRequest    `json:"request"`
	Status      TransferStatus     `json:"status"`
	Receipt     *BurnReceipt       `json:"receipt,omitempty"`
	Attestation *AttestationRecord `json:"attestation,omitempty"`
	MintResult  *RelayResult       `json:"mint_result,omitempty"`
	IBCResult   *RelayResult       `json:"ibc_result,omitempty"`
	FailReason  string             `json:"fail_reason,omitempty"`
	// Recoverable is set on failure when funds are already burned and the
	// credit is still pending; the retained receipt is the recovery handle.
	Recoverable bool      `json:"recoverable"`
	ExplorerURL string    `json:"explorer_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StateChange is emitted by the orchestrator on every transition so a
// presentation layer can render progress without touching orchestration.
type StateChange struct {
	TransferID uuid.UUID      `json:"transfer_id"`
	From       TransferStatus `json:"from"`
	To         TransferStatus `json:"to"`
	Reason     string         `json:"reason,omitempty"`
	At         time.Time      `json:"at"`
}
