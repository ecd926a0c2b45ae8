package orchestrator

import (
	"bytes"
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	derrors "github.com/joltify-bridge/bridge_service/internal/domain/errors"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/allowance"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/attestation"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/routes"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/watcher"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/evm"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/hub"
	"github.com/joltify-bridge/bridge_service/pkg/addrcodec"
)

type stubAllowance struct {
	current    *big.Int
	checkErr   error
	ensureErr  error
	checkCalls int
	ensures    int
}

func (s *stubAllowance) Check(_ context.Context, _ string, _ common.Address, required *big.Int) (allowance.State, error) {
	s.checkCalls++
	if s.checkErr != nil {
		return allowance.State{}, s.checkErr
	}
	return allowance.State{Current: s.current, Required: required}, nil
}

func (s *stubAllowance) Ensure(context.Context, string, evm.Signer, *big.Int) error {
	s.ensures++
	return s.ensureErr
}

type stubBurner struct {
	receipt *entities.BurnReceipt
	evmErr  error

	cosmosReceipt *entities.BurnReceipt
	cosmosResult  *entities.RelayResult
	cosmosErr     error

	evmCalls      int
	cosmosCalls   int
	lastRecipient string
	lastTarget    entities.Domain
	lastFee       decimal.Decimal
	lastMinter    string
}

func (s *stubBurner) SubmitEVM(_ context.Context, _, target entities.Domain, _ evm.Signer, recipient string, _ decimal.Decimal) (*entities.BurnReceipt, error) {
	s.evmCalls++
	s.lastTarget = target
	s.lastRecipient = recipient
	return s.receipt, s.evmErr
}

func (s *stubBurner) SubmitCosmos(_ context.Context, target entities.Domain, _ hub.Signer, recipient string, _, relayFee decimal.Decimal, minter string) (*entities.BurnReceipt, *entities.RelayResult, error) {
	s.cosmosCalls++
	s.lastTarget = target
	s.lastRecipient = recipient
	s.lastFee = relayFee
	s.lastMinter = minter
	return s.cosmosReceipt, s.cosmosResult, s.cosmosErr
}

type stubAttester struct {
	outcome attestation.Outcome
	err     error
	calls   int
	lastID  uint32
	lastTx  string
}

func (s *stubAttester) Await(_ context.Context, sourceDomainID uint32, txHash string) (attestation.Outcome, error) {
	s.calls++
	s.lastID = sourceDomainID
	s.lastTx = txHash
	return s.outcome, s.err
}

type stubMinter struct {
	result *entities.RelayResult
	err    error
	calls  int
}

func (s *stubMinter) RelayMint(context.Context, hub.Signer, entities.AttestationRecord) (*entities.RelayResult, error) {
	s.calls++
	return s.result, s.err
}

type stubBalances struct {
	err      error
	calls    int
	lastAddr string
	lastDir  watcher.Direction
}

func (s *stubBalances) AwaitBalanceChange(_ context.Context, address, _ string, direction watcher.Direction, _ time.Duration) (decimal.Decimal, error) {
	s.calls++
	s.lastAddr = address
	s.lastDir = direction
	return decimal.NewFromInt(1_000_000), s.err
}

type stubForwarder struct {
	result *entities.RelayResult
	err    error
	calls  int

	lastSender   string
	lastReceiver string
	lastDesired  decimal.Decimal
}

func (s *stubForwarder) Forward(_ context.Context, _ hub.Signer, sender, receiver string, desired decimal.Decimal) (*entities.RelayResult, error) {
	s.calls++
	s.lastSender = sender
	s.lastReceiver = receiver
	s.lastDesired = desired
	return s.result, s.err
}

type stubEVMSigner struct{}

func (stubEVMSigner) Address() common.Address { return common.HexToAddress("0xfeed") }
func (stubEVMSigner) SignTx(_ context.Context, tx *ethtypes.Transaction, _ *big.Int) (*ethtypes.Transaction, error) {
	return tx, nil
}

type stubHubSigner struct{}

func (stubHubSigner) Address() string                              { return "noble1signer" }
func (stubHubSigner) Sign(context.Context, []byte) ([]byte, error) { return []byte{0x01}, nil }

type stubSigners struct {
	evmErr error
	hubErr error
}

func (s *stubSigners) EVMSigner(context.Context, string, string) (evm.Signer, error) {
	if s.evmErr != nil {
		return nil, s.evmErr
	}
	return stubEVMSigner{}, nil
}

func (s *stubSigners) HubSigner(context.Context, string) (hub.Signer, error) {
	if s.hubErr != nil {
		return nil, s.hubErr
	}
	return stubHubSigner{}, nil
}

type stubRoutes struct {
	quote  routes.FeeQuote
	minter string
}

func (s *stubRoutes) FeeAndETA(string) routes.FeeQuote { return s.quote }
func (s *stubRoutes) Minter() string                   { return s.minter }

type fixture struct {
	allowance *stubAllowance
	burner    *stubBurner
	attester  *stubAttester
	minter    *stubMinter
	balances  *stubBalances
	forwarder *stubForwarder
	signers   *stubSigners
	routes    *stubRoutes
	orch      *Orchestrator
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		allowance: &stubAllowance{current: big.NewInt(1_000_000_000)},
		burner: &stubBurner{
			receipt: &entities.BurnReceipt{
				SourceDomain: entities.DomainEthereum,
				TxHash:       "0xburn",
				CreatedAt:    time.Now(),
			},
			cosmosReceipt: &entities.BurnReceipt{SourceDomain: entities.DomainNoble, TxHash: "AA11"},
			cosmosResult:  &entities.RelayResult{TxHash: "AA11", Code: 0},
		},
		attester: &stubAttester{
			outcome: attestation.Outcome{
				Record: entities.AttestationRecord{
					Status:      entities.AttestationComplete,
					Message:     []byte{0xca, 0xfe},
					Attestation: []byte{0xbe, 0xef},
				},
				Attempts: 2,
			},
		},
		minter:    &stubMinter{result: &entities.RelayResult{TxHash: "BB22", Code: 0}},
		balances:  &stubBalances{},
		forwarder: &stubForwarder{result: &entities.RelayResult{TxHash: "CC33", Code: 0}},
		signers:   &stubSigners{},
		routes:    &stubRoutes{quote: routes.FeeQuote{Fee: decimal.NewFromInt(150_000), ETA: "15 minutes", Known: true}, minter: "noble1minter"},
	}
	if cfg.Denom == "" {
		cfg.Denom = "uusdc"
	}
	f.orch = New(f.allowance, f.burner, f.attester, f.minter, f.balances, f.forwarder, f.signers, f.routes, cfg, zap.NewNop())
	return f
}

func bech32Addr(t *testing.T, prefix string) string {
	t.Helper()
	words, err := bech32.ConvertBits(bytes.Repeat([]byte{0x42}, 20), 8, 5, true)
	require.NoError(t, err)
	addr, err := bech32.Encode(prefix, words)
	require.NoError(t, err)
	return addr
}

func waitTerminal(t *testing.T, o *Orchestrator, id uuid.UUID) entities.TransferState {
	t.Helper()
	var state entities.TransferState
	require.Eventually(t, func() bool {
		s, ok := o.Get(id)
		if !ok {
			return false
		}
		state = s
		return s.Status.Terminal()
	}, 2*time.Second, 2*time.Millisecond)
	return state
}

func transitions(changes []entities.StateChange) []entities.TransferStatus {
	out := make([]entities.TransferStatus, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.To)
	}
	return out
}

func TestStartToHub(t *testing.T) {
	f := newFixture(Config{})

	started, err := f.orch.Start(context.Background(), entities.TransferRequest{
		SourceDomain: entities.DomainEthereum,
		TargetDomain: entities.DomainNoble,
		Recipient:    bech32Addr(t, "noble"),
		Amount:       decimal.RequireFromString("25"),
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, started.Request.ID)

	state := waitTerminal(t, f.orch, started.Request.ID)
	assert.Equal(t, entities.StatusCompleted, state.Status)
	assert.Equal(t, 1, f.burner.evmCalls)
	assert.Equal(t, 1, f.attester.calls)
	assert.Equal(t, 1, f.minter.calls)
	assert.Equal(t, 0, f.allowance.ensures)
	assert.Equal(t, 0, f.balances.calls)
	assert.Equal(t, 0, f.forwarder.calls)

	assert.Equal(t, entities.DomainNoble, f.burner.lastTarget)
	assert.Equal(t, entities.DomainEthereum.CircleID, f.attester.lastID)
	assert.Equal(t, "0xburn", f.attester.lastTx)

	require.NotNil(t, state.Receipt)
	require.NotNil(t, state.Attestation)
	require.NotNil(t, state.MintResult)
	assert.True(t, state.MintResult.Success())

	history, ok := f.orch.History(started.Request.ID)
	require.True(t, ok)
	assert.Equal(t, []entities.TransferStatus{
		entities.StatusCheckingAllowance,
		entities.StatusDepositing,
		entities.StatusAwaitingAttest,
		entities.StatusRelayingMint,
		entities.StatusCompleted,
	}, transitions(history))
}

func TestStartRaisesAllowance(t *testing.T) {
	f := newFixture(Config{})
	f.allowance.current = big.NewInt(10)

	started, err := f.orch.Start(context.Background(), entities.TransferRequest{
		SourceDomain: entities.DomainAvalanche,
		TargetDomain: entities.DomainNoble,
		Recipient:    bech32Addr(t, "noble"),
		Amount:       decimal.RequireFromString("25"),
	})
	require.NoError(t, err)

	state := waitTerminal(t, f.orch, started.Request.ID)
	assert.Equal(t, entities.StatusCompleted, state.Status)
	assert.Equal(t, 1, f.allowance.ensures)

	history, _ := f.orch.History(started.Request.ID)
	assert.Contains(t, transitions(history), entities.StatusApproving)
}

func TestStartToSecondary(t *testing.T) {
	f := newFixture(Config{})
	recipient := bech32Addr(t, "jolt")

	started, err := f.orch.Start(context.Background(), entities.TransferRequest{
		SourceDomain: entities.DomainEthereum,
		TargetDomain: entities.DomainJoltify,
		Recipient:    recipient,
		Amount:       decimal.RequireFromString("25"),
	})
	require.NoError(t, err)

	state := waitTerminal(t, f.orch, started.Request.ID)
	require.Equal(t, entities.StatusCompleted, state.Status)

	twin, err := addrcodec.ConvertBech32Prefix(recipient, "noble")
	require.NoError(t, err)

	// Mint lands on the hub twin account, then hops to the secondary chain.
	assert.Equal(t, twin, f.burner.lastRecipient)
	assert.Equal(t, 1, f.balances.calls)
	assert.Equal(t, twin, f.balances.lastAddr)
	assert.Equal(t, watcher.DirectionIncrease, f.balances.lastDir)
	assert.Equal(t, 1, f.forwarder.calls)
	assert.Equal(t, twin, f.forwarder.lastSender)
	assert.Equal(t, recipient, f.forwarder.lastReceiver)
	assert.Equal(t, "25000000", f.forwarder.lastDesired.String())
	require.NotNil(t, state.IBCResult)

	history, _ := f.orch.History(started.Request.ID)
	got := transitions(history)
	assert.Contains(t, got, entities.StatusAwaitingCredit)
	assert.Contains(t, got, entities.StatusForwardingIBC)
}

func TestStartFromHub(t *testing.T) {
	f := newFixture(Config{})

	started, err := f.orch.Start(context.Background(), entities.TransferRequest{
		SourceDomain: entities.DomainNoble,
		TargetDomain: entities.DomainArbitrum,
		Recipient:    "0x9999999999999999999999999999999999999999",
		Amount:       decimal.RequireFromString("25"),
	})
	require.NoError(t, err)

	state := waitTerminal(t, f.orch, started.Request.ID)
	assert.Equal(t, entities.StatusCompleted, state.Status)
	assert.Equal(t, 1, f.burner.cosmosCalls)
	assert.Equal(t, 0, f.burner.evmCalls)
	assert.Equal(t, 0, f.attester.calls)
	assert.Equal(t, 0, f.minter.calls)
	assert.Equal(t, entities.DomainArbitrum, f.burner.lastTarget)
	assert.Equal(t, "150000", f.burner.lastFee.String())
	assert.Equal(t, "noble1minter", f.burner.lastMinter)
	require.NotNil(t, state.Receipt)
}

func TestStartValidation(t *testing.T) {
	f := newFixture(Config{})

	cases := []struct {
		name string
		req  entities.TransferRequest
	}{
		{"same domain", entities.TransferRequest{
			SourceDomain: entities.DomainNoble, TargetDomain: entities.DomainNoble,
			Recipient: "noble1x", Amount: decimal.NewFromInt(1),
		}},
		{"unknown domain", entities.TransferRequest{
			SourceDomain: entities.Domain{Name: "Solana"}, TargetDomain: entities.DomainNoble,
			Recipient: "noble1x", Amount: decimal.NewFromInt(1),
		}},
		{"no route between cosmos chains", entities.TransferRequest{
			SourceDomain: entities.DomainJoltify, TargetDomain: entities.DomainNoble,
			Recipient: "noble1x", Amount: decimal.NewFromInt(1),
		}},
		{"missing recipient", entities.TransferRequest{
			SourceDomain: entities.DomainEthereum, TargetDomain: entities.DomainNoble,
			Amount: decimal.NewFromInt(1),
		}},
		{"fractional base units", entities.TransferRequest{
			SourceDomain: entities.DomainEthereum, TargetDomain: entities.DomainNoble,
			Recipient: "noble1x", Amount: decimal.RequireFromString("0.0000005"),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orch.Start(context.Background(), tc.req)
			assert.Equal(t, derrors.KindValidation, derrors.KindOf(err))
		})
	}
	assert.Equal(t, 0, f.burner.evmCalls)
	assert.Equal(t, 0, f.burner.cosmosCalls)
}

func TestAttestationTimeoutFailsRecoverably(t *testing.T) {
	f := newFixture(Config{
		ExplorerURLs: map[string]string{"Ethereum": "https://etherscan.io/tx/%s"},
	})
	f.attester.outcome = attestation.Outcome{TimedOut: true, Attempts: 20}

	started, err := f.orch.Start(context.Background(), entities.TransferRequest{
		SourceDomain: entities.DomainEthereum,
		TargetDomain: entities.DomainNoble,
		Recipient:    bech32Addr(t, "noble"),
		Amount:       decimal.RequireFromString("25"),
	})
	require.NoError(t, err)

	state := waitTerminal(t, f.orch, started.Request.ID)
	assert.Equal(t, entities.StatusFailed, state.Status)
	assert.True(t, state.Recoverable)
	assert.Contains(t, state.FailReason, "20 attempts")
	assert.Equal(t, "https://etherscan.io/tx/0xburn", state.ExplorerURL)
	assert.Equal(t, 0, f.minter.calls)
}

func TestMintFailureIsAlwaysRecoverable(t *testing.T) {
	f := newFixture(Config{})
	f.minter.result = &entities.RelayResult{TxHash: "DD44", Code: 5}
	f.minter.err = derrors.New(derrors.KindLogicalRejection, "insufficient attestation", nil)

	started, err := f.orch.Start(context.Background(), entities.TransferRequest{
		SourceDomain: entities.DomainEthereum,
		TargetDomain: entities.DomainNoble,
		Recipient:    bech32Addr(t, "noble"),
		Amount:       decimal.RequireFromString("25"),
	})
	require.NoError(t, err)

	state := waitTerminal(t, f.orch, started.Request.ID)
	assert.Equal(t, entities.StatusFailed, state.Status)
	assert.True(t, state.Recoverable)
	require.NotNil(t, state.MintResult)
	assert.Equal(t, uint32(5), state.MintResult.Code)
}

func TestResume(t *testing.T) {
	f := newFixture(Config{})
	f.attester.outcome = attestation.Outcome{TimedOut: true, Attempts: 20}

	started, err := f.orch.Start(context.Background(), entities.TransferRequest{
		SourceDomain: entities.DomainEthereum,
		TargetDomain: entities.DomainNoble,
		Recipient:    bech32Addr(t, "noble"),
		Amount:       decimal.RequireFromString("25"),
	})
	require.NoError(t, err)
	failed := waitTerminal(t, f.orch, started.Request.ID)
	require.Equal(t, entities.StatusFailed, failed.Status)
	require.True(t, failed.Recoverable)

	// The attestation has landed by the time the user retries.
	f.attester.outcome = attestation.Outcome{
		Record:   entities.AttestationRecord{Status: entities.AttestationComplete, Message: []byte{0x01}, Attestation: []byte{0x02}},
		Attempts: 1,
	}

	resumed, err := f.orch.Resume(context.Background(), started.Request.ID)
	require.NoError(t, err)
	require.NotEqual(t, started.Request.ID, resumed.Request.ID)
	require.NotNil(t, resumed.Receipt)
	assert.Equal(t, "0xburn", resumed.Receipt.TxHash)

	state := waitTerminal(t, f.orch, resumed.Request.ID)
	assert.Equal(t, entities.StatusCompleted, state.Status)
	// No second burn: the mint leg replays from the stored receipt.
	assert.Equal(t, 1, f.burner.evmCalls)
	assert.Equal(t, 1, f.minter.calls)

	// The original stays failed.
	orig, ok := f.orch.Get(started.Request.ID)
	require.True(t, ok)
	assert.Equal(t, entities.StatusFailed, orig.Status)
}

func TestResumeRejectsNonRecoverable(t *testing.T) {
	f := newFixture(Config{})

	t.Run("unknown transfer", func(t *testing.T) {
		_, err := f.orch.Resume(context.Background(), uuid.New())
		assert.Equal(t, derrors.KindValidation, derrors.KindOf(err))
	})

	t.Run("completed transfer", func(t *testing.T) {
		started, err := f.orch.Start(context.Background(), entities.TransferRequest{
			SourceDomain: entities.DomainEthereum,
			TargetDomain: entities.DomainNoble,
			Recipient:    bech32Addr(t, "noble"),
			Amount:       decimal.RequireFromString("25"),
		})
		require.NoError(t, err)
		waitTerminal(t, f.orch, started.Request.ID)

		_, err = f.orch.Resume(context.Background(), started.Request.ID)
		assert.Equal(t, derrors.KindValidation, derrors.KindOf(err))
	})

	t.Run("failed before the burn", func(t *testing.T) {
		f := newFixture(Config{})
		f.burner.receipt = nil
		f.burner.evmErr = derrors.New(derrors.KindSubmission, "nonce too low", nil)

		started, err := f.orch.Start(context.Background(), entities.TransferRequest{
			SourceDomain: entities.DomainEthereum,
			TargetDomain: entities.DomainNoble,
			Recipient:    bech32Addr(t, "noble"),
			Amount:       decimal.RequireFromString("25"),
		})
		require.NoError(t, err)
		state := waitTerminal(t, f.orch, started.Request.ID)
		require.Equal(t, entities.StatusFailed, state.Status)

		_, err = f.orch.Resume(context.Background(), started.Request.ID)
		assert.Equal(t, derrors.KindValidation, derrors.KindOf(err))
	})
}

// holdingAttester blocks until its context is cancelled, signalling each
// poll start so tests can cancel mid-attestation.
type holdingAttester struct {
	polling chan struct{}
}

func (h *holdingAttester) Await(ctx context.Context, _ uint32, _ string) (attestation.Outcome, error) {
	select {
	case h.polling <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return attestation.Outcome{}, derrors.New(derrors.KindCancelled, "attestation poll cancelled", ctx.Err())
}

func TestCancelAfterBurnStaysRecoverable(t *testing.T) {
	f := newFixture(Config{})
	holding := &holdingAttester{polling: make(chan struct{}, 2)}
	orch := New(f.allowance, f.burner, holding, f.minter, f.balances, f.forwarder, f.signers, f.routes,
		Config{Denom: "uusdc", ExplorerURLs: map[string]string{"Ethereum": "https://etherscan.io/tx/%s"}},
		zap.NewNop())

	started, err := orch.Start(context.Background(), entities.TransferRequest{
		SourceDomain: entities.DomainEthereum,
		TargetDomain: entities.DomainNoble,
		Recipient:    bech32Addr(t, "noble"),
		Amount:       decimal.RequireFromString("25"),
	})
	require.NoError(t, err)

	select {
	case <-holding.polling:
	case <-time.After(2 * time.Second):
		t.Fatal("attestation poll never started")
	}
	require.NoError(t, orch.Cancel(started.Request.ID))

	state := waitTerminal(t, orch, started.Request.ID)
	assert.Equal(t, entities.StatusFailed, state.Status)
	// The burn landed before the cancel; the receipt stays the recovery handle.
	assert.True(t, state.Recoverable)
	require.NotNil(t, state.Receipt)
	assert.Equal(t, "https://etherscan.io/tx/0xburn", state.ExplorerURL)

	resumed, err := orch.Resume(context.Background(), started.Request.ID)
	require.NoError(t, err)
	require.NotEqual(t, started.Request.ID, resumed.Request.ID)

	select {
	case <-holding.polling:
	case <-time.After(2 * time.Second):
		t.Fatal("resumed attestation poll never started")
	}
	require.NoError(t, orch.Cancel(resumed.Request.ID))
	state = waitTerminal(t, orch, resumed.Request.ID)
	assert.True(t, state.Recoverable)
}

func TestCancel(t *testing.T) {
	f := newFixture(Config{})

	t.Run("unknown transfer", func(t *testing.T) {
		err := f.orch.Cancel(uuid.New())
		assert.Equal(t, derrors.KindValidation, derrors.KindOf(err))
	})

	t.Run("terminal transfer", func(t *testing.T) {
		started, err := f.orch.Start(context.Background(), entities.TransferRequest{
			SourceDomain: entities.DomainEthereum,
			TargetDomain: entities.DomainNoble,
			Recipient:    bech32Addr(t, "noble"),
			Amount:       decimal.RequireFromString("25"),
		})
		require.NoError(t, err)
		waitTerminal(t, f.orch, started.Request.ID)

		err = f.orch.Cancel(started.Request.ID)
		assert.Equal(t, derrors.KindValidation, derrors.KindOf(err))
	})
}

func TestListAndEvents(t *testing.T) {
	events := make(chan entities.StateChange, 64)
	f := newFixture(Config{Events: events})

	started, err := f.orch.Start(context.Background(), entities.TransferRequest{
		SourceDomain: entities.DomainEthereum,
		TargetDomain: entities.DomainNoble,
		Recipient:    bech32Addr(t, "noble"),
		Amount:       decimal.RequireFromString("25"),
	})
	require.NoError(t, err)
	waitTerminal(t, f.orch, started.Request.ID)

	list := f.orch.List()
	require.Len(t, list, 1)
	assert.Equal(t, started.Request.ID, list[0].Request.ID)

	history, _ := f.orch.History(started.Request.ID)
	require.Len(t, events, len(history))
	first := <-events
	assert.Equal(t, entities.StatusIdle, first.From)
	assert.Equal(t, entities.StatusCheckingAllowance, first.To)
}
