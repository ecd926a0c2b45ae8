// Package routes holds the per-session fee and route table. The table is
// fetched once at startup and refreshed on a schedule; lookups never block
// on the network. A missing entry degrades to a zero fee instead of failing
// the transfer.
package routes

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/relayapi"
)

// Source provides the route parameter table.
type Source interface {
	FetchRouteParams(ctx context.Context) (*relayapi.RouteParams, error)
}

// FeeQuote is the fee and expected-time answer for one destination. Known is
// false when the table has no entry; the zero fee then stands in and the
// transfer proceeds degraded.
type FeeQuote struct {
	Fee   decimal.Decimal `json:"fee"`
	ETA   string          `json:"eta"`
	Known bool            `json:"known"`
}

// Table is the session route/fee table.
type Table struct {
	source Source
	logger *zap.Logger

	mu      sync.RWMutex
	minter  string
	byChain map[string]relayapi.TargetChain

	cron *cron.Cron
}

// NewTable creates an empty table backed by source.
func NewTable(source Source, logger *zap.Logger) *Table {
	return &Table{
		source:  source,
		logger:  logger,
		byChain: make(map[string]relayapi.TargetChain),
	}
}

// Load fetches the table. Called once at session start and again by the
// refresh schedule.
func (t *Table) Load(ctx context.Context) error {
	params, err := t.source.FetchRouteParams(ctx)
	if err != nil {
		return fmt.Errorf("load route table: %w", err)
	}

	byChain := make(map[string]relayapi.TargetChain, len(params.TargetChains))
	for _, tc := range params.TargetChains {
		byChain[tc.ChainName] = tc
	}

	t.mu.Lock()
	t.minter = params.Minter
	t.byChain = byChain
	t.mu.Unlock()

	t.logger.Info("Route table loaded",
		zap.Int("destinations", len(byChain)),
		zap.String("minter", params.Minter))
	return nil
}

// StartRefresh schedules periodic reloads with the given cron spec.
func (t *Table) StartRefresh(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := t.Load(context.Background()); err != nil {
			t.logger.Warn("Route table refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule route refresh: %w", err)
	}
	c.Start()
	t.cron = c
	return nil
}

// Stop stops the refresh schedule.
func (t *Table) Stop() {
	if t.cron != nil {
		t.cron.Stop()
	}
}

// FeeAndETA looks up the fee and expected arrival time for a destination.
// Unknown destinations return a zero fee with Known=false.
func (t *Table) FeeAndETA(chainName string) FeeQuote {
	t.mu.RLock()
	entry, ok := t.byChain[chainName]
	t.mu.RUnlock()

	if !ok {
		t.logger.Warn("No route table entry, proceeding with zero fee",
			zap.String("chain", chainName))
		return FeeQuote{Fee: decimal.Zero, ETA: "minutes"}
	}

	fee, err := decimal.NewFromString(entry.Fee)
	if err != nil {
		t.logger.Warn("Unparseable fee in route table, proceeding with zero fee",
			zap.String("chain", chainName),
			zap.String("fee", entry.Fee))
		return FeeQuote{Fee: decimal.Zero, ETA: entry.Time}
	}
	return FeeQuote{Fee: fee, ETA: entry.Time, Known: true}
}

// Minter returns the fee collector address on the hub chain.
func (t *Table) Minter() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.minter
}

// DomainID returns the Circle domain ID recorded for a destination.
func (t *Table) DomainID(chainName string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.byChain[chainName]
	if !ok {
		return 0, false
	}
	return entry.Domain, true
}
