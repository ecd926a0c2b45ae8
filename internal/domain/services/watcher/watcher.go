// Package watcher polls an account balance until it moves in the expected
// direction. A relay broadcast succeeding is necessary but not sufficient
// proof of credit; the balance moving is the confirmation.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	derrors "github.com/joltify-bridge/bridge_service/internal/domain/errors"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/hub"
	"github.com/joltify-bridge/bridge_service/pkg/poll"
)

// DefaultInterval is the reference poll cadence.
const DefaultInterval = 6 * time.Second

// Direction selects which balance movement resolves the wait.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// Watcher polls bank balances on a target chain.
type Watcher struct {
	bank     hub.BankQuerier
	interval time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a watcher. A zero interval gets the reference default.
func NewWatcher(bank hub.BankQuerier, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval == 0 {
		interval = DefaultInterval
	}
	return &Watcher{bank: bank, interval: interval, logger: logger}
}

// AwaitBalanceChange captures the balance at call time and polls until it
// moves in the requested direction or the timeout elapses. The timeout error
// carries the elapsed duration, which is always at least the configured
// timeout. An unchanged balance or a move in the wrong direction never
// resolves the wait.
func (w *Watcher) AwaitBalanceChange(ctx context.Context, address, denom string, direction Direction, timeout time.Duration) (decimal.Decimal, error) {
	baseline, err := w.bank.Balance(ctx, address, denom)
	if err != nil {
		return decimal.Zero, derrors.New(derrors.KindSubmission, "baseline balance query failed", err)
	}

	w.logger.Debug("Watching balance",
		zap.String("address", address),
		zap.String("denom", denom),
		zap.String("direction", string(direction)),
		zap.String("baseline", baseline.String()))

	attempts := int((timeout + w.interval - 1) / w.interval)
	if attempts < 1 {
		attempts = 1
	}
	cfg := poll.Config{Interval: w.interval, MaxAttempts: attempts}

	var latest decimal.Decimal
	res, err := poll.Run(ctx, cfg, func(ctx context.Context) (bool, error) {
		current, err := w.bank.Balance(ctx, address, denom)
		if err != nil {
			return false, derrors.New(derrors.KindSubmission, "balance query failed", err)
		}
		latest = current
		switch direction {
		case DirectionIncrease:
			return current.GreaterThan(baseline), nil
		case DirectionDecrease:
			return current.LessThan(baseline), nil
		default:
			return false, derrors.New(derrors.KindValidation, "unknown direction "+string(direction), nil)
		}
	})

	switch {
	case err == nil:
		w.logger.Info("Balance changed",
			zap.String("address", address),
			zap.String("new_balance", latest.String()))
		return latest, nil
	case errors.Is(err, poll.ErrBudgetExhausted):
		return decimal.Zero, derrors.NewRecoverable(derrors.KindPollTimeout,
			fmt.Sprintf("balance watch timed out after %s", res.Elapsed), nil).
			WithDetails(map[string]interface{}{
				"elapsed": res.Elapsed.String(),
				"timeout": timeout.String(),
				"address": address,
			})
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return decimal.Zero, derrors.New(derrors.KindCancelled, "balance watch cancelled", err)
	default:
		return decimal.Zero, err
	}
}
