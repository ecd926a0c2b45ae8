// Package attestation polls the attestation service for a burn until the
// attestation is produced or the poll budget runs out. Running out of budget
// is an outcome, not an error: the burn receipt stays valid and the caller
// decides whether to keep waiting out-of-band.
package attestation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	derrors "github.com/joltify-bridge/bridge_service/internal/domain/errors"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/relay"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/iris"
	"github.com/joltify-bridge/bridge_service/pkg/poll"
)

const (
	// DefaultInterval and DefaultMaxAttempts give the reference budget of
	// roughly 400 seconds.
	DefaultInterval    = 20 * time.Second
	DefaultMaxAttempts = 20
)

// Outcome is the result of one polling run.
type Outcome struct {
	Record   entities.AttestationRecord
	TimedOut bool
	Attempts int
	Elapsed  time.Duration
}

// Poller drives attestation polling for EVM-origin burns.
type Poller struct {
	client iris.AttestationClient
	cfg    poll.Config
	logger *zap.Logger
}

// NewPoller creates a poller. Zero config fields get the reference defaults.
func NewPoller(client iris.AttestationClient, cfg poll.Config, logger *zap.Logger) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Poller{client: client, cfg: cfg, logger: logger}
}

// Await polls until the attestation for (sourceDomainID, txHash) is
// complete. A 404 or empty message list means the indexer has not seen the
// burn yet and counts as pending. Budget exhaustion returns a timed-out
// Outcome with a pending record and no error; cancellation returns a
// Cancelled error.
func (p *Poller) Await(ctx context.Context, sourceDomainID uint32, txHash string) (Outcome, error) {
	var record entities.AttestationRecord
	record.Status = entities.AttestationPending

	res, err := poll.Run(ctx, p.cfg, func(ctx context.Context) (bool, error) {
		resp, err := p.client.GetMessages(ctx, sourceDomainID, txHash)
		if err != nil {
			if errors.Is(err, iris.ErrNoMessages) {
				// Indexer lag: identical to a pending status.
				return false, nil
			}
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			p.logger.Debug("Attestation poll attempt failed, continuing",
				zap.String("tx_hash", txHash),
				zap.Error(err))
			return false, nil
		}

		msg := resp.Messages[0]
		if !msg.Complete() {
			return false, nil
		}

		messageBytes, err := relay.DecodeHex(msg.Message)
		if err != nil {
			return false, derrors.New(derrors.KindValidation, "attestation service returned malformed message", err)
		}
		attestationBytes, err := relay.DecodeHex(msg.Attestation)
		if err != nil {
			return false, derrors.New(derrors.KindValidation, "attestation service returned malformed attestation", err)
		}

		record = entities.AttestationRecord{
			Status:      entities.AttestationComplete,
			Message:     messageBytes,
			Attestation: attestationBytes,
		}
		return true, nil
	})

	outcome := Outcome{Record: record, Attempts: res.Attempts, Elapsed: res.Elapsed}
	switch {
	case err == nil:
		p.logger.Info("Attestation complete",
			zap.String("tx_hash", txHash),
			zap.Int("attempts", res.Attempts))
		return outcome, nil
	case errors.Is(err, poll.ErrBudgetExhausted):
		outcome.TimedOut = true
		p.logger.Warn("Attestation poll budget exhausted",
			zap.String("tx_hash", txHash),
			zap.Int("attempts", res.Attempts),
			zap.Duration("elapsed", res.Elapsed))
		return outcome, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return outcome, derrors.New(derrors.KindCancelled, "attestation poll cancelled", err)
	default:
		return outcome, err
	}
}
