package market

import (
	"context"

	"clob/internal/common"
)

// DepositBase pulls amount of the base asset from owner's wallet into the
// base vault and credits it to owner's available_base. Account
// provisioning itself is out of scope (SPEC_FULL.md §1); this only moves
// already-provisioned tokens.
func (m *Market) DepositBase(ctx context.Context, owner common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount == 0 {
		return nil
	}
	if err := m.baseLedger.Transfer(ctx, owner, m.state.BaseVault, amount); err != nil {
		return err
	}
	m.balanceFor(owner).AvailableBase += amount
	return nil
}

// DepositQuote is DepositBase's quote-asset counterpart.
func (m *Market) DepositQuote(ctx context.Context, owner common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount == 0 {
		return nil
	}
	if err := m.quoteLedger.Transfer(ctx, owner, m.state.QuoteVault, amount); err != nil {
		return err
	}
	m.balanceFor(owner).AvailableQuote += amount
	return nil
}
