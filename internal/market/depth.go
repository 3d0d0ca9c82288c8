package market

import (
	"clob/internal/common"
	"clob/internal/state"
)

// Depth returns up to levels price levels of the requested side's resting
// orders, best price first. It backs the LogBook diagnostic request
// (SPEC_FULL.md §6.1) and takes the market's own lock, since
// state.OrderBook.Depth reads the live order array.
func (m *Market) Depth(side common.Side, levels int) []state.PriceLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	book := m.Bids
	if side == common.Sell {
		book = m.Asks
	}
	return book.Depth(levels)
}
