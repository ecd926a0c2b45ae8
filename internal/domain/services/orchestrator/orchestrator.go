// Package orchestrator drives a cross-chain transfer through its state
// machine, delegating each leg to the focused services and recording every
// transition.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	derrors "github.com/joltify-bridge/bridge_service/internal/domain/errors"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/allowance"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/attestation"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/burn"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/routes"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/watcher"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/evm"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/hub"
	"github.com/joltify-bridge/bridge_service/pkg/addrcodec"
)

// DefaultCreditTimeout bounds the wait for the minted funds to land on the
// hub account before the transfer fails recoverably.
const DefaultCreditTimeout = 10 * time.Minute

// HubPrefix is the bech32 prefix of hub accounts.
const HubPrefix = "noble"

// AllowanceEnsurer checks and, when short, raises the ERC-20 allowance for
// the token messenger.
type AllowanceEnsurer interface {
	Check(ctx context.Context, domainName string, owner common.Address, required *big.Int) (allowance.State, error)
	Ensure(ctx context.Context, domainName string, signer evm.Signer, required *big.Int) error
}

// BurnSubmitter submits the depositForBurn leg on either side of the bridge.
type BurnSubmitter interface {
	SubmitEVM(ctx context.Context, source, target entities.Domain, signer evm.Signer, recipient string, amount decimal.Decimal) (*entities.BurnReceipt, error)
	SubmitCosmos(ctx context.Context, target entities.Domain, signer hub.Signer, recipient string, amount, relayFee decimal.Decimal, minter string) (*entities.BurnReceipt, *entities.RelayResult, error)
}

// AttestationAwaiter polls the attestation service until the burn message is
// attested or the poll budget runs out.
type AttestationAwaiter interface {
	Await(ctx context.Context, sourceDomainID uint32, txHash string) (attestation.Outcome, error)
}

// MintRelayer relays an attested message to the hub, minting the burned
// amount there.
type MintRelayer interface {
	RelayMint(ctx context.Context, signer hub.Signer, record entities.AttestationRecord) (*entities.RelayResult, error)
}

// BalanceAwaiter watches a hub account until its balance moves.
type BalanceAwaiter interface {
	AwaitBalanceChange(ctx context.Context, address, denom string, direction watcher.Direction, timeout time.Duration) (decimal.Decimal, error)
}

// IBCForwarder moves hub funds to the secondary chain.
type IBCForwarder interface {
	Forward(ctx context.Context, signer hub.Signer, sender, receiver string, desired decimal.Decimal) (*entities.RelayResult, error)
}

// SignerResolver turns the opaque signer handle on a request into signing
// capabilities. Implementations own key custody; the orchestrator never
// sees key material.
type SignerResolver interface {
	EVMSigner(ctx context.Context, handle, domainName string) (evm.Signer, error)
	HubSigner(ctx context.Context, handle string) (hub.Signer, error)
}

// RouteInfo supplies per-destination relay fees and the fee collector.
type RouteInfo interface {
	FeeAndETA(chainName string) routes.FeeQuote
	Minter() string
}

// Config tunes the orchestrator.
type Config struct {
	Denom         string
	CreditTimeout time.Duration
	// ExplorerURLs maps a domain name to a tx URL template with one %s verb.
	ExplorerURLs map[string]string
	// Events, when set, receives every state change. Sends never block; a
	// full channel drops the event (history still records it).
	Events chan<- entities.StateChange
}

// Orchestrator owns the in-memory registry of transfers and runs each one on
// its own goroutine.
type Orchestrator struct {
	allowance AllowanceEnsurer
	burner    BurnSubmitter
	attester  AttestationAwaiter
	minter    MintRelayer
	balances  BalanceAwaiter
	forwarder IBCForwarder
	signers   SignerResolver
	routes    RouteInfo
	cfg       Config
	logger    *zap.Logger

	mu        sync.RWMutex
	transfers map[uuid.UUID]*managed
}

type managed struct {
	state   entities.TransferState
	history []entities.StateChange
	cancel  context.CancelFunc
	done    chan struct{}
}

// New wires an orchestrator from its collaborators.
func New(
	allowance AllowanceEnsurer,
	burner BurnSubmitter,
	attester AttestationAwaiter,
	minter MintRelayer,
	balances BalanceAwaiter,
	forwarder IBCForwarder,
	signers SignerResolver,
	routeInfo RouteInfo,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.CreditTimeout == 0 {
		cfg.CreditTimeout = DefaultCreditTimeout
	}
	return &Orchestrator{
		allowance: allowance,
		burner:    burner,
		attester:  attester,
		minter:    minter,
		balances:  balances,
		forwarder: forwarder,
		signers:   signers,
		routes:    routeInfo,
		cfg:       cfg,
		logger:    logger,
		transfers: make(map[uuid.UUID]*managed),
	}
}

type route int

const (
	routeUnsupported route = iota
	routeEVMToHub
	routeEVMToSecondary
	routeHubToEVM
)

func routeOf(req entities.TransferRequest) route {
	switch {
	case req.SourceDomain.IsEVM() && req.TargetDomain.Hub:
		return routeEVMToHub
	case req.SourceDomain.IsEVM() && req.TargetDomain.IsCosmos():
		return routeEVMToSecondary
	case req.SourceDomain.Hub && req.TargetDomain.IsEVM():
		return routeHubToEVM
	default:
		return routeUnsupported
	}
}

func validate(req entities.TransferRequest) error {
	if _, ok := entities.DomainByName[req.SourceDomain.Name]; !ok {
		return derrors.New(derrors.KindValidation, fmt.Sprintf("unknown source domain %q", req.SourceDomain.Name), nil)
	}
	if _, ok := entities.DomainByName[req.TargetDomain.Name]; !ok {
		return derrors.New(derrors.KindValidation, fmt.Sprintf("unknown target domain %q", req.TargetDomain.Name), nil)
	}
	if req.SourceDomain.Name == req.TargetDomain.Name {
		return derrors.New(derrors.KindValidation, "source and target domain are the same", nil)
	}
	if routeOf(req) == routeUnsupported {
		return derrors.New(derrors.KindValidation,
			fmt.Sprintf("no route from %s to %s", req.SourceDomain.Name, req.TargetDomain.Name), nil)
	}
	if req.Recipient == "" {
		return derrors.New(derrors.KindValidation, "recipient is required", nil)
	}
	if _, err := burn.BaseUnits(req.Amount); err != nil {
		return err
	}
	return nil
}

// Start validates the request, registers it, and runs the transfer on its
// own goroutine. The returned state is a snapshot at registration time.
func (o *Orchestrator) Start(ctx context.Context, req entities.TransferRequest) (entities.TransferState, error) {
	if err := validate(req); err != nil {
		return entities.TransferState{}, err
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m := &managed{
		state: entities.TransferState{
			Request:   req,
			Status:    entities.StatusIdle,
			UpdatedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	o.mu.Lock()
	o.transfers[req.ID] = m
	snapshot := m.state
	o.mu.Unlock()

	go o.run(runCtx, m)
	return snapshot, nil
}

// Get returns a snapshot of a transfer's state.
func (o *Orchestrator) Get(id uuid.UUID) (entities.TransferState, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	m, ok := o.transfers[id]
	if !ok {
		return entities.TransferState{}, false
	}
	return m.state, true
}

// History returns the recorded state changes for a transfer, oldest first.
func (o *Orchestrator) History(id uuid.UUID) ([]entities.StateChange, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	m, ok := o.transfers[id]
	if !ok {
		return nil, false
	}
	out := make([]entities.StateChange, len(m.history))
	copy(out, m.history)
	return out, true
}

// List returns snapshots of every known transfer.
func (o *Orchestrator) List() []entities.TransferState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]entities.TransferState, 0, len(o.transfers))
	for _, m := range o.transfers {
		out = append(out, m.state)
	}
	return out
}

// Cancel aborts an in-flight transfer. Terminal transfers cannot be
// cancelled.
func (o *Orchestrator) Cancel(id uuid.UUID) error {
	o.mu.RLock()
	m, ok := o.transfers[id]
	o.mu.RUnlock()
	if !ok {
		return derrors.New(derrors.KindValidation, "unknown transfer", nil)
	}
	if m.state.Status.Terminal() {
		return derrors.New(derrors.KindValidation, "transfer already finished", nil)
	}
	m.cancel()
	return nil
}

// Resume re-runs the mint leg of a recoverably failed transfer as a fresh
// transfer seeded with the original burn receipt. The original transfer
// stays Failed; the new one starts at the attestation wait.
func (o *Orchestrator) Resume(ctx context.Context, id uuid.UUID) (entities.TransferState, error) {
	o.mu.RLock()
	orig, ok := o.transfers[id]
	o.mu.RUnlock()
	if !ok {
		return entities.TransferState{}, derrors.New(derrors.KindValidation, "unknown transfer", nil)
	}
	if orig.state.Status != entities.StatusFailed || !orig.state.Recoverable || orig.state.Receipt == nil {
		return entities.TransferState{}, derrors.New(derrors.KindValidation,
			"transfer is not recoverable from a burn receipt", nil)
	}

	req := orig.state.Request
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	receipt := *orig.state.Receipt

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m := &managed{
		state: entities.TransferState{
			Request:   req,
			Status:    entities.StatusIdle,
			Receipt:   &receipt,
			UpdatedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	o.mu.Lock()
	o.transfers[req.ID] = m
	snapshot := m.state
	o.mu.Unlock()

	go func() {
		defer close(m.done)
		if err := o.runMintLeg(runCtx, m); err != nil {
			o.fail(m, err)
			return
		}
		if err := o.transition(m, entities.StatusCompleted, ""); err != nil {
			o.fail(m, err)
		}
	}()
	return snapshot, nil
}

func (o *Orchestrator) run(ctx context.Context, m *managed) {
	defer close(m.done)

	var err error
	switch routeOf(m.state.Request) {
	case routeEVMToHub, routeEVMToSecondary:
		err = o.runFromEVM(ctx, m)
	case routeHubToEVM:
		err = o.runFromHub(ctx, m)
	default:
		err = derrors.New(derrors.KindValidation, "unsupported route", nil)
	}
	if err != nil {
		o.fail(m, err)
	}
}

// runFromEVM handles both EVM destinations: the hub itself, and the
// secondary chain reached by an extra IBC hop after the hub mint.
func (o *Orchestrator) runFromEVM(ctx context.Context, m *managed) error {
	req := m.state.Request
	units, err := burn.BaseUnits(req.Amount)
	if err != nil {
		return err
	}

	// The mint always lands on the hub; a secondary-chain recipient is
	// reached through its hub-prefixed twin account.
	hubRecipient := req.Recipient
	if !req.TargetDomain.Hub {
		hubRecipient, err = addrcodec.ConvertBech32Prefix(req.Recipient, HubPrefix)
		if err != nil {
			return derrors.New(derrors.KindValidation, "recipient is not a valid bech32 address", err)
		}
	}

	signer, err := o.signers.EVMSigner(ctx, req.SignerHandle, req.SourceDomain.Name)
	if err != nil {
		return derrors.New(derrors.KindValidation, "signer resolution failed", err)
	}

	if err := o.transition(m, entities.StatusCheckingAllowance, ""); err != nil {
		return err
	}
	state, err := o.allowance.Check(ctx, req.SourceDomain.Name, signer.Address(), units.BigInt())
	if err != nil {
		return err
	}
	if !state.Sufficient() {
		if err := o.transition(m, entities.StatusApproving, "allowance below transfer amount"); err != nil {
			return err
		}
		if err := o.allowance.Ensure(ctx, req.SourceDomain.Name, signer, units.BigInt()); err != nil {
			return err
		}
	}

	if err := o.transition(m, entities.StatusDepositing, ""); err != nil {
		return err
	}
	receipt, err := o.burner.SubmitEVM(ctx, req.SourceDomain, entities.DomainNoble, signer, hubRecipient, req.Amount)
	if receipt != nil {
		o.update(m, func(s *entities.TransferState) { s.Receipt = receipt })
	}
	if err != nil {
		return err
	}

	if err := o.runMintLeg(ctx, m); err != nil {
		return err
	}
	if req.TargetDomain.Hub {
		return o.transition(m, entities.StatusCompleted, "")
	}

	hubSigner, err := o.signers.HubSigner(ctx, req.SignerHandle)
	if err != nil {
		// Funds are already minted on the hub; recoverable by hand.
		return derrors.NewRecoverable(derrors.KindValidation, "hub signer resolution failed", err)
	}

	if err := o.transition(m, entities.StatusAwaitingCredit, ""); err != nil {
		return err
	}
	if _, err := o.balances.AwaitBalanceChange(ctx, hubRecipient, o.cfg.Denom, watcher.DirectionIncrease, o.cfg.CreditTimeout); err != nil {
		return err
	}

	if err := o.transition(m, entities.StatusForwardingIBC, ""); err != nil {
		return err
	}
	ibcResult, err := o.forwarder.Forward(ctx, hubSigner, hubRecipient, req.Recipient, units)
	if ibcResult != nil {
		o.update(m, func(s *entities.TransferState) { s.IBCResult = ibcResult })
	}
	if err != nil {
		return err
	}
	return o.transition(m, entities.StatusCompleted, "")
}

// runMintLeg waits for the attestation of the recorded burn receipt, then
// relays the mint to the hub. An exhausted attestation budget fails the
// transfer recoverably: the receipt survives for a later Resume.
func (o *Orchestrator) runMintLeg(ctx context.Context, m *managed) error {
	o.mu.RLock()
	receipt := m.state.Receipt
	req := m.state.Request
	o.mu.RUnlock()
	if receipt == nil {
		return derrors.New(derrors.KindValidation, "no burn receipt to relay from", nil)
	}

	if err := o.transition(m, entities.StatusAwaitingAttest, ""); err != nil {
		return err
	}
	outcome, err := o.attester.Await(ctx, receipt.SourceDomain.CircleID, receipt.TxHash)
	if err != nil {
		return err
	}
	if outcome.TimedOut {
		return derrors.NewRecoverable(derrors.KindPollTimeout,
			fmt.Sprintf("attestation still pending after %d attempts", outcome.Attempts), nil)
	}
	o.update(m, func(s *entities.TransferState) { s.Attestation = &outcome.Record })

	hubSigner, err := o.signers.HubSigner(ctx, req.SignerHandle)
	if err != nil {
		return derrors.NewRecoverable(derrors.KindValidation, "hub signer resolution failed", err)
	}

	if err := o.transition(m, entities.StatusRelayingMint, ""); err != nil {
		return err
	}
	result, mintErr := o.minter.RelayMint(ctx, hubSigner, outcome.Record)
	if result != nil {
		o.update(m, func(s *entities.TransferState) { s.MintResult = result })
	}
	if mintErr != nil {
		// The burn is final; a failed mint is always retriable.
		return asRecoverable(mintErr)
	}
	return nil
}

// runFromHub burns on the hub for an EVM destination. The mint itself is
// executed by the external minter paid through the bundled fee transfer.
func (o *Orchestrator) runFromHub(ctx context.Context, m *managed) error {
	req := m.state.Request

	hubSigner, err := o.signers.HubSigner(ctx, req.SignerHandle)
	if err != nil {
		return derrors.New(derrors.KindValidation, "signer resolution failed", err)
	}

	quote := o.routes.FeeAndETA(req.TargetDomain.Name)
	minter := o.routes.Minter()

	if err := o.transition(m, entities.StatusDepositing, ""); err != nil {
		return err
	}
	receipt, result, err := o.burner.SubmitCosmos(ctx, req.TargetDomain, hubSigner, req.Recipient, req.Amount, quote.Fee, minter)
	if result != nil {
		o.update(m, func(s *entities.TransferState) { s.MintResult = result })
	}
	if err != nil {
		return err
	}
	o.update(m, func(s *entities.TransferState) { s.Receipt = receipt })

	o.logger.Info("Hub burn accepted, mint delegated to route minter",
		zap.String("transfer_id", req.ID.String()),
		zap.String("target", req.TargetDomain.Name),
		zap.String("eta", quote.ETA))
	return o.transition(m, entities.StatusCompleted, "")
}

// transition moves the transfer to next, records the change, and emits the
// event. Invalid transitions are programming errors and fail the transfer.
func (o *Orchestrator) transition(m *managed, next entities.TransferStatus, reason string) error {
	o.mu.Lock()
	current := m.state.Status
	if !current.CanTransitionTo(next) {
		o.mu.Unlock()
		return derrors.New(derrors.KindValidation,
			fmt.Sprintf("illegal transition %s -> %s", current, next), nil)
	}
	now := time.Now()
	m.state.Status = next
	m.state.UpdatedAt = now
	change := entities.StateChange{
		TransferID: m.state.Request.ID,
		From:       current,
		To:         next,
		Reason:     reason,
		At:         now,
	}
	m.history = append(m.history, change)
	o.mu.Unlock()

	o.logger.Debug("Transfer transition",
		zap.String("transfer_id", change.TransferID.String()),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)))
	o.emit(change)
	return nil
}

func (o *Orchestrator) update(m *managed, fn func(*entities.TransferState)) {
	o.mu.Lock()
	fn(&m.state)
	m.state.UpdatedAt = time.Now()
	o.mu.Unlock()
}

func (o *Orchestrator) fail(m *managed, cause error) {
	o.mu.Lock()
	current := m.state.Status
	if current.Terminal() {
		o.mu.Unlock()
		return
	}
	// Once a burn receipt exists the funds are burned or in flight; every
	// later failure, cancellation included, must stay retryable from it.
	recoverable := derrors.IsRecoverable(cause) || m.state.Receipt != nil
	now := time.Now()
	m.state.Status = entities.StatusFailed
	m.state.FailReason = cause.Error()
	m.state.Recoverable = recoverable
	if recoverable && m.state.Receipt != nil {
		if tpl, ok := o.cfg.ExplorerURLs[m.state.Receipt.SourceDomain.Name]; ok {
			m.state.ExplorerURL = fmt.Sprintf(tpl, m.state.Receipt.TxHash)
		}
	}
	m.state.UpdatedAt = now
	change := entities.StateChange{
		TransferID: m.state.Request.ID,
		From:       current,
		To:         entities.StatusFailed,
		Reason:     cause.Error(),
		At:         now,
	}
	m.history = append(m.history, change)
	o.mu.Unlock()

	o.logger.Error("Transfer failed",
		zap.String("transfer_id", change.TransferID.String()),
		zap.String("kind", string(derrors.KindOf(cause))),
		zap.Bool("recoverable", recoverable),
		zap.Error(cause))
	o.emit(change)
}

func (o *Orchestrator) emit(change entities.StateChange) {
	if o.cfg.Events == nil {
		return
	}
	select {
	case o.cfg.Events <- change:
	default:
	}
}

func asRecoverable(err error) error {
	if te, ok := err.(*derrors.TransferError); ok {
		te.Recoverable = true
		return te
	}
	return derrors.NewRecoverable(derrors.KindSubmission, "mint relay failed", err)
}
