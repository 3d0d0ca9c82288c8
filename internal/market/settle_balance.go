package market

import (
	"context"

	"clob/internal/common"
)

// SettleBalance transfers owner's pending_base and pending_quote out of
// the vaults into their wallet and zeroes both buckets (SPEC_FULL.md
// §4.6). If both are already zero, it succeeds as a no-op — settlement is
// idempotent (§8, P7).
func (m *Market) SettleBalance(ctx context.Context, owner common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[owner]
	if !ok || !bal.HasPending() {
		return nil
	}

	if bal.PendingBase > 0 {
		amt := bal.PendingBase
		if err := m.baseLedger.Transfer(ctx, m.state.BaseVault, owner, amt); err != nil {
			return err
		}
		bal.PendingBase = 0
	}
	if bal.PendingQuote > 0 {
		amt := bal.PendingQuote
		if err := m.quoteLedger.Transfer(ctx, m.state.QuoteVault, owner, amt); err != nil {
			return err
		}
		bal.PendingQuote = 0
	}
	return nil
}
