package market

import (
	"clob/internal/common"
	"clob/internal/ledger"
	"clob/internal/state"
)

// InitializeMarket is the validating constructor behind the
// InitializeMarket request (SPEC_FULL.md §6): it rejects a degenerate
// tick_size or min_order_size before any Market aggregate exists, the same
// way the original program's instruction handler validates before writing
// its state accounts. A Market is otherwise only ever built through this
// function or the equivalent literal construction in tests.
func InitializeMarket(marketID, baseMint, quoteMint, baseVault, quoteVault common.Address, minOrderSize, tickSize, feeRateBps uint64, admin, consumeAuthority common.Address, baseLedger, quoteLedger ledger.TokenLedger) (*Market, error) {
	ms, err := state.NewMarketState(marketID, baseMint, quoteMint, baseVault, quoteVault, minOrderSize, tickSize, feeRateBps, admin, consumeAuthority)
	if err != nil {
		return nil, err
	}
	return New(ms, baseLedger, quoteLedger), nil
}
