// Package market implements the matching engine's transaction boundary:
// PlaceOrder, CancelOrder, ConsumeEvents, SettleBalance and the deposit
// operations, each serialised behind a single per-market mutex
// (SPEC_FULL.md §5). The package is deliberately free of logging and I/O —
// those live one layer up, in the server and keeper, mirroring the
// teacher's separation of internal/engine from internal/net.
package market

import (
	"sync"

	"clob/internal/common"
	"clob/internal/ledger"
	"clob/internal/state"
)

// Market is the mutex-guarded aggregate root for a single trading pair:
// the book pair, the event queue, every user's balance record, and the
// two TokenLedgers backing the base and quote vaults.
type Market struct {
	mu sync.Mutex

	state  *state.MarketState
	Bids   *state.OrderBook
	Asks   *state.OrderBook
	Events *state.EventQueue

	balances map[common.Address]*state.UserBalance

	baseLedger  ledger.TokenLedger
	quoteLedger ledger.TokenLedger
}

// New constructs a Market from its configuration and the two ledgers that
// back its vaults. Bids, Asks and Events start empty; balances are created
// lazily on first deposit or order placement.
func New(ms *state.MarketState, baseLedger, quoteLedger ledger.TokenLedger) *Market {
	return &Market{
		state:       ms,
		Bids:        state.NewOrderBook(ms.Market, common.Buy),
		Asks:        state.NewOrderBook(ms.Market, common.Sell),
		Events:      state.NewEventQueue(ms.Market),
		balances:    make(map[common.Address]*state.UserBalance),
		baseLedger:  baseLedger,
		quoteLedger: quoteLedger,
	}
}

// ID returns the market's own Address.
func (m *Market) ID() common.Address {
	return m.state.Market
}

// Balance returns a snapshot of owner's balance record, or a zeroed one if
// they have never deposited into this market.
func (m *Market) Balance(owner common.Address) state.UserBalance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[owner]; ok {
		return *b
	}
	return state.UserBalance{Owner: owner, Market: m.state.Market}
}

// KnownAccounts returns every address that has ever touched this market's
// balances (via deposit or order placement). The keeper uses this as its
// resolvable set, since it runs without a per-call instruction account
// list the way an on-chain consume_events invocation would have one.
func (m *Market) KnownAccounts() []common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	accounts := make([]common.Address, 0, len(m.balances))
	for addr := range m.balances {
		accounts = append(accounts, addr)
	}
	return accounts
}

// balanceFor returns owner's balance record, creating an empty one on
// first touch. Callers must hold m.mu.
func (m *Market) balanceFor(owner common.Address) *state.UserBalance {
	if b, ok := m.balances[owner]; ok {
		return b
	}
	b := state.NewUserBalance(owner, m.state.Market)
	m.balances[owner] = b
	return b
}

// unlockBaseClamped and unlockQuoteClamped release at most what is
// actually locked, where UserBalance's Unlock* would panic on an amount
// larger than the locked bucket. CancelOrder and the self-trade branch of
// applyFill release collateral through these.
func unlockBaseClamped(b *state.UserBalance, amount uint64) {
	if amount > b.LockedBase {
		amount = b.LockedBase
	}
	b.UnlockBase(amount)
}

func unlockQuoteClamped(b *state.UserBalance, amount uint64) {
	if amount > b.LockedQuote {
		amount = b.LockedQuote
	}
	b.UnlockQuote(amount)
}
