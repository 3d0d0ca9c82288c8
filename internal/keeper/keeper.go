// Package keeper runs the background ConsumeEvents cranker named in
// SPEC_FULL.md §5 ("Asynchrony above the transaction boundary"): a
// tomb-supervised goroutine that periodically drains a market's event
// queue on behalf of the consume_events_authority.
package keeper

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"clob/internal/common"
	"clob/internal/market"
)

// Keeper periodically calls ConsumeEvents against a market, obtained
// through marketOf on every tick rather than held directly, since the
// server's market may not exist yet when the keeper starts (SPEC_FULL.md
// §6, InitializeMarket).
type Keeper struct {
	marketOf   func() *market.Market
	interval   time.Duration
	resolvable func() []common.Address
}

// New returns a Keeper that cranks whatever market marketOf currently
// returns, every interval. A tick against a nil market is a silent no-op —
// the keeper just waits for InitializeMarket to run. If resolvable is nil,
// the keeper falls back to the current market's KnownAccounts, re-read
// fresh on every tick so newly deposited accounts are picked up
// automatically.
func New(marketOf func() *market.Market, interval time.Duration, resolvable func() []common.Address) *Keeper {
	return &Keeper{marketOf: marketOf, interval: interval, resolvable: resolvable}
}

// Run blocks, cranking on a ticker until ctx is cancelled or t is dying.
// Cancellation or expiry of ctx is a clean stop and returns nil.
func (k *Keeper) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)
	runID := uuid.New().String()
	log.Info().Str("runID", runID).Dur("interval", k.interval).Msg("keeper starting")

	t.Go(func() error {
		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.Dying():
				return nil
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				m := k.marketOf()
				if m == nil {
					continue
				}
				resolvable := k.resolvable
				if resolvable == nil {
					resolvable = m.KnownAccounts
				}
				consumed := m.ConsumeEvents(resolvable())
				if consumed > 0 {
					log.Info().Str("runID", runID).Int("consumed", consumed).Msg("keeper drained events")
				}
			}
		}
	})

	<-t.Dying()
	if err := t.Err(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
