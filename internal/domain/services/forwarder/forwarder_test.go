package forwarder

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	derrors "github.com/joltify-bridge/bridge_service/internal/domain/errors"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/hub"
)

type stubBroadcaster struct {
	result *entities.RelayResult
	err    error
	calls  int
	msgs   []hub.Msg
}

func (s *stubBroadcaster) Broadcast(_ context.Context, _ hub.Signer, msgs []hub.Msg) (*entities.RelayResult, error) {
	s.calls++
	s.msgs = msgs
	return s.result, s.err
}

type stubBank struct {
	balance decimal.Decimal
	err     error
}

func (s *stubBank) Balances(context.Context, string) ([]hub.Coin, error) { return nil, nil }

func (s *stubBank) Balance(context.Context, string, string) (decimal.Decimal, error) {
	return s.balance, s.err
}

type stubSigner struct{ addr string }

func (s stubSigner) Address() string                              { return s.addr }
func (s stubSigner) Sign(context.Context, []byte) ([]byte, error) { return []byte{0x01}, nil }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestSendableAmount(t *testing.T) {
	reserve := dec(50_000)

	t.Run("desired below spendable", func(t *testing.T) {
		got := SendableAmount(dec(100_000), reserve, dec(40_000))
		assert.True(t, got.Equal(dec(40_000)))
	})

	t.Run("desired capped by reserve", func(t *testing.T) {
		got := SendableAmount(dec(100_000), reserve, dec(80_000))
		assert.True(t, got.Equal(dec(50_000)))
	})

	t.Run("exactly the reserve leaves nothing", func(t *testing.T) {
		got := SendableAmount(dec(50_000), reserve, dec(10_000))
		assert.True(t, got.IsZero())
	})

	t.Run("below the reserve goes negative", func(t *testing.T) {
		got := SendableAmount(dec(40_000), reserve, dec(10_000))
		assert.True(t, got.IsNegative())
	})
}

func TestForward(t *testing.T) {
	cfg := Config{SourceChannel: "channel-81", Denom: "uusdc"}
	signer := stubSigner{addr: "noble1sender"}

	t.Run("builds the transfer message", func(t *testing.T) {
		caster := &stubBroadcaster{result: &entities.RelayResult{TxHash: "AA11", Code: 0}}
		bank := &stubBank{balance: dec(100_000)}
		f := NewForwarder(caster, bank, cfg, zap.NewNop())

		before := time.Now()
		result, err := f.Forward(context.Background(), signer, "noble1sender", "jolt1recipient", dec(40_000))
		require.NoError(t, err)
		assert.Equal(t, "AA11", result.TxHash)

		require.Len(t, caster.msgs, 1)
		msg, ok := caster.msgs[0].(hub.MsgTransfer)
		require.True(t, ok)
		assert.Equal(t, SourcePort, msg.SourcePort)
		assert.Equal(t, "channel-81", msg.SourceChannel)
		assert.Equal(t, "jolt1recipient", msg.Receiver)
		assert.Equal(t, hub.Coin{Denom: "uusdc", Amount: "40000"}, msg.Token)

		// Timeout sits roughly one window past now, in nanoseconds.
		min := uint64(before.Add(DefaultTimeoutWindow).UnixNano())
		max := uint64(before.Add(DefaultTimeoutWindow + time.Minute).UnixNano())
		assert.GreaterOrEqual(t, msg.TimeoutTimestamp, min)
		assert.Less(t, msg.TimeoutTimestamp, max)
	})

	t.Run("caps the amount at the reserve", func(t *testing.T) {
		caster := &stubBroadcaster{result: &entities.RelayResult{TxHash: "BB22", Code: 0}}
		bank := &stubBank{balance: dec(100_000)}
		f := NewForwarder(caster, bank, cfg, zap.NewNop())

		_, err := f.Forward(context.Background(), signer, "noble1sender", "jolt1recipient", dec(80_000))
		require.NoError(t, err)

		msg := caster.msgs[0].(hub.MsgTransfer)
		assert.Equal(t, "50000", msg.Token.Amount)
	})

	t.Run("skips when nothing is sendable", func(t *testing.T) {
		caster := &stubBroadcaster{}
		bank := &stubBank{balance: dec(40_000)}
		f := NewForwarder(caster, bank, cfg, zap.NewNop())

		_, err := f.Forward(context.Background(), signer, "noble1sender", "jolt1recipient", dec(10_000))
		assert.Equal(t, derrors.KindInsufficientBalance, derrors.KindOf(err))
		assert.Equal(t, 0, caster.calls)
	})

	t.Run("balance query failure", func(t *testing.T) {
		caster := &stubBroadcaster{}
		bank := &stubBank{err: assert.AnError}
		f := NewForwarder(caster, bank, cfg, zap.NewNop())

		_, err := f.Forward(context.Background(), signer, "noble1sender", "jolt1recipient", dec(10_000))
		assert.Equal(t, derrors.KindSubmission, derrors.KindOf(err))
		assert.Equal(t, 0, caster.calls)
	})
}
