package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clob/internal/common"
	"clob/internal/ledger"
	"clob/internal/state"
)

func newTestMarket(t *testing.T) (*Market, *ledger.MemoryLedger, *ledger.MemoryLedger) {
	t.Helper()
	marketID := common.AddressFromSeed("market")
	ms, err := state.NewMarketState(
		marketID,
		common.AddressFromSeed("base-mint"), common.AddressFromSeed("quote-mint"),
		common.AddressFromSeed("base-vault"), common.AddressFromSeed("quote-vault"),
		1, 1, 0,
		common.AddressFromSeed("admin"), common.AddressFromSeed("keeper"),
	)
	require.NoError(t, err)
	baseLedger := ledger.NewMemoryLedger()
	quoteLedger := ledger.NewMemoryLedger()
	return New(ms, baseLedger, quoteLedger), baseLedger, quoteLedger
}

func TestScenarioCrossTheSpreadFullFill(t *testing.T) {
	ctx := context.Background()
	m, baseLedger, quoteLedger := newTestMarket(t)
	alice := common.AddressFromSeed("alice")
	bob := common.AddressFromSeed("bob")

	// Credited above what's deposited: PlaceOrder pulls the locked amount
	// from the wallet a second time, independently of the deposit pull
	// (SPEC_FULL.md §4.3), so the wallet needs headroom beyond the deposit.
	baseLedger.Credit(alice, 15)
	quoteLedger.Credit(bob, 15*common.Scale)
	require.NoError(t, m.DepositBase(ctx, alice, 10))
	require.NoError(t, m.DepositQuote(ctx, bob, 10*common.Scale))

	sellID, err := m.PlaceOrder(ctx, alice, common.Sell, common.Scale, 5)
	require.NoError(t, err)
	assert.NotZero(t, sellID)
	assert.Equal(t, uint64(1), m.Asks.ActiveCount)
	assert.Equal(t, uint64(5), m.Balance(alice).LockedBase)

	buyID, err := m.PlaceOrder(ctx, bob, common.Buy, common.Scale, 5)
	require.NoError(t, err)
	assert.Zero(t, buyID)
	assert.Equal(t, uint64(0), m.Asks.ActiveCount)
	assert.Equal(t, uint64(5), m.Balance(bob).LockedQuote)

	assert.Equal(t, uint64(1), m.Events.EventsToProcess)
	fill := m.Events.Events[0]
	assert.Equal(t, uint64(1), fill.SeqNum)
	assert.Equal(t, uint64(5), fill.Quantity)
	assert.Equal(t, uint64(common.Scale), fill.Price)
	assert.Equal(t, alice, fill.Maker)
	assert.Equal(t, bob, fill.Taker)

	consumed := m.ConsumeEvents([]common.Address{alice, bob})
	assert.Equal(t, 1, consumed)
	assert.Equal(t, uint64(5), m.Balance(alice).PendingQuote)
	assert.Equal(t, uint64(0), m.Balance(alice).LockedBase)
	assert.Equal(t, uint64(5), m.Balance(bob).PendingBase)
	assert.Equal(t, uint64(0), m.Balance(bob).LockedQuote)

	require.NoError(t, m.SettleBalance(ctx, alice))
	require.NoError(t, m.SettleBalance(ctx, bob))
	assert.Equal(t, uint64(5), quoteLedger.Balance(alice))
	assert.Equal(t, uint64(5), baseLedger.Balance(bob))
}

func TestScenarioPartialFillResidualRests(t *testing.T) {
	ctx := context.Background()
	m, baseLedger, quoteLedger := newTestMarket(t)
	alice := common.AddressFromSeed("alice")
	bob := common.AddressFromSeed("bob")

	baseLedger.Credit(alice, 20)
	quoteLedger.Credit(bob, 13*common.Scale)
	require.NoError(t, m.DepositBase(ctx, alice, 10))
	require.NoError(t, m.DepositQuote(ctx, bob, 10*common.Scale))

	_, err := m.PlaceOrder(ctx, alice, common.Sell, common.Scale, 10)
	require.NoError(t, err)

	buyID, err := m.PlaceOrder(ctx, bob, common.Buy, common.Scale, 3)
	require.NoError(t, err)
	assert.Zero(t, buyID)

	assert.Equal(t, uint64(1), m.Asks.ActiveCount)
	assert.Equal(t, uint64(0), m.Bids.ActiveCount)
	assert.Equal(t, uint64(3), m.Asks.Orders[0].FilledQuantity)
	assert.Equal(t, uint64(1), m.Events.EventsToProcess)
	assert.Equal(t, uint64(3), m.Events.Events[0].Quantity)
}

func TestScenarioBuyRestsThenSellSweeps(t *testing.T) {
	ctx := context.Background()
	m, baseLedger, quoteLedger := newTestMarket(t)
	alice := common.AddressFromSeed("alice")
	bob := common.AddressFromSeed("bob")

	quoteLedger.Credit(bob, 14*common.Scale)
	baseLedger.Credit(alice, 14)
	require.NoError(t, m.DepositQuote(ctx, bob, 10*common.Scale))
	require.NoError(t, m.DepositBase(ctx, alice, 10))

	bidID, err := m.PlaceOrder(ctx, bob, common.Buy, common.Scale, 4)
	require.NoError(t, err)
	assert.NotZero(t, bidID)
	assert.Equal(t, uint64(1), m.Bids.ActiveCount)

	sellID, err := m.PlaceOrder(ctx, alice, common.Sell, common.Scale, 4)
	require.NoError(t, err)
	assert.Zero(t, sellID)
	assert.Equal(t, uint64(0), m.Bids.ActiveCount)

	require.Equal(t, uint64(1), m.Events.EventsToProcess)
	fill := m.Events.Events[0]
	assert.Equal(t, uint64(4), fill.Quantity)
	assert.Equal(t, bob, fill.Maker)
	assert.Equal(t, alice, fill.Taker)
	assert.Equal(t, common.Sell, fill.Side)
}

func TestScenarioCancelBeforeMatch(t *testing.T) {
	ctx := context.Background()
	m, _, quoteLedger := newTestMarket(t)
	bob := common.AddressFromSeed("bob")

	quoteLedger.Credit(bob, 12*common.Scale)
	require.NoError(t, m.DepositQuote(ctx, bob, 10*common.Scale))

	orderID, err := m.PlaceOrder(ctx, bob, common.Buy, common.Scale, 2)
	require.NoError(t, err)
	before := m.Balance(bob).AvailableQuote
	assert.Equal(t, uint64(2), m.Balance(bob).LockedQuote)

	require.NoError(t, m.CancelOrder(bob, orderID))
	assert.Equal(t, uint64(0), m.Bids.ActiveCount)
	assert.Equal(t, uint64(0), m.Balance(bob).LockedQuote)
	assert.Equal(t, before+2, m.Balance(bob).AvailableQuote)

	consumed := m.ConsumeEvents([]common.Address{bob})
	assert.Equal(t, 1, consumed)
	// The Out event is a no-op on top of the synchronous unlock above.
	assert.Equal(t, uint64(0), m.Balance(bob).LockedQuote)
	assert.Equal(t, before+2, m.Balance(bob).AvailableQuote)
}

func TestScenarioCancelOrderNotFound(t *testing.T) {
	m, _, _ := newTestMarket(t)
	bob := common.AddressFromSeed("bob")
	err := m.CancelOrder(bob, 12345)
	assert.ErrorIs(t, err, common.ErrOrderNotFound)
}

func TestScenarioBatchConsumeLimit(t *testing.T) {
	ctx := context.Background()
	m, baseLedger, quoteLedger := newTestMarket(t)
	alice := common.AddressFromSeed("alice")
	bob := common.AddressFromSeed("bob")

	baseLedger.Credit(alice, 110)
	quoteLedger.Credit(bob, 110*common.Scale)
	require.NoError(t, m.DepositBase(ctx, alice, 100))
	require.NoError(t, m.DepositQuote(ctx, bob, 100*common.Scale))

	for i := 0; i < 10; i++ {
		_, err := m.PlaceOrder(ctx, alice, common.Sell, common.Scale, 1)
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		_, err := m.PlaceOrder(ctx, bob, common.Buy, common.Scale, 1)
		require.NoError(t, err)
	}

	require.Equal(t, uint64(10), m.Events.EventsToProcess)

	first := m.ConsumeEvents([]common.Address{alice, bob})
	assert.Equal(t, int(common.MaxConsumeBatch), first)
	assert.Equal(t, uint64(3), m.Events.EventsToProcess)

	second := m.ConsumeEvents([]common.Address{alice, bob})
	assert.Equal(t, 3, second)
	assert.Equal(t, uint64(0), m.Events.EventsToProcess)
}

func TestScenarioSelfTrade(t *testing.T) {
	ctx := context.Background()
	m, baseLedger, quoteLedger := newTestMarket(t)
	alice := common.AddressFromSeed("alice")

	baseLedger.Credit(alice, 12)
	quoteLedger.Credit(alice, 12*common.Scale)
	require.NoError(t, m.DepositBase(ctx, alice, 10))
	require.NoError(t, m.DepositQuote(ctx, alice, 10*common.Scale))

	_, err := m.PlaceOrder(ctx, alice, common.Sell, common.Scale, 2)
	require.NoError(t, err)
	orderID, err := m.PlaceOrder(ctx, alice, common.Buy, common.Scale, 2)
	require.NoError(t, err)
	assert.Zero(t, orderID)

	require.Equal(t, uint64(1), m.Events.EventsToProcess)
	fill := m.Events.Events[0]
	assert.Equal(t, alice, fill.Maker)
	assert.Equal(t, alice, fill.Taker)

	consumed := m.ConsumeEvents([]common.Address{alice})
	assert.Equal(t, 1, consumed)

	bal := m.Balance(alice)
	assert.Equal(t, uint64(0), bal.LockedBase)
	assert.Equal(t, uint64(0), bal.LockedQuote)
	assert.Equal(t, uint64(0), bal.PendingBase)
	assert.Equal(t, uint64(0), bal.PendingQuote)
}

func TestPropertyBookFullRejectsAndLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	m, baseLedger, _ := newTestMarket(t)
	alice := common.AddressFromSeed("alice")
	// Double the deposited amount: every PlaceOrder below pulls its locked
	// quantity from the wallet again on top of what the deposit already
	// pulled (SPEC_FULL.md §4.3).
	baseLedger.Credit(alice, 2*(uint64(common.MaxOrders)+1))
	require.NoError(t, m.DepositBase(ctx, alice, uint64(common.MaxOrders)+1))

	for i := uint64(0); i < common.MaxOrders; i++ {
		_, err := m.PlaceOrder(ctx, alice, common.Sell, common.Scale+i, 1)
		require.NoError(t, err)
	}
	require.Equal(t, uint64(common.MaxOrders), m.Asks.ActiveCount)

	before := m.Balance(alice)
	_, err := m.PlaceOrder(ctx, alice, common.Sell, common.Scale+uint64(common.MaxOrders), 1)
	assert.ErrorIs(t, err, common.ErrBookFull)
	assert.Equal(t, uint64(common.MaxOrders), m.Asks.ActiveCount)
	assert.Equal(t, before, m.Balance(alice))
}

func TestPropertySettleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, baseLedger, quoteLedger := newTestMarket(t)
	alice := common.AddressFromSeed("alice")
	bob := common.AddressFromSeed("bob")

	quoteLedger.Credit(bob, 15*common.Scale)
	baseLedger.Credit(alice, 10)
	require.NoError(t, m.DepositQuote(ctx, bob, 10*common.Scale))
	require.NoError(t, m.DepositBase(ctx, alice, 5))

	_, err := m.PlaceOrder(ctx, alice, common.Sell, common.Scale, 5)
	require.NoError(t, err)
	_, err = m.PlaceOrder(ctx, bob, common.Buy, common.Scale, 5)
	require.NoError(t, err)
	m.ConsumeEvents([]common.Address{alice, bob})

	require.NoError(t, m.SettleBalance(ctx, alice))
	afterFirst := m.Balance(alice)
	require.NoError(t, m.SettleBalance(ctx, alice))
	assert.Equal(t, afterFirst, m.Balance(alice))
}

func TestPlaceOrderRejectsZeroPriceOrQuantity(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMarket(t)
	alice := common.AddressFromSeed("alice")

	_, err := m.PlaceOrder(ctx, alice, common.Buy, 0, 10)
	assert.ErrorIs(t, err, common.ErrInvalidInstructionData)

	_, err = m.PlaceOrder(ctx, alice, common.Buy, common.Scale, 0)
	assert.ErrorIs(t, err, common.ErrInvalidInstructionData)
}

func TestPlaceOrderRejectsTruncatedZeroQuoteAmount(t *testing.T) {
	ctx := context.Background()
	m, _, quoteLedger := newTestMarket(t)
	alice := common.AddressFromSeed("alice")
	quoteLedger.Credit(alice, 1)
	require.NoError(t, m.DepositQuote(ctx, alice, 1))

	_, err := m.PlaceOrder(ctx, alice, common.Buy, 1, 1)
	assert.ErrorIs(t, err, common.ErrZeroQuoteAmount)
}

func TestPlaceOrderRejectsInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMarket(t)
	alice := common.AddressFromSeed("alice")

	_, err := m.PlaceOrder(ctx, alice, common.Sell, common.Scale, 5)
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)
}

func TestPlaceOrderRejectsQueueFullBeforeMutatingState(t *testing.T) {
	ctx := context.Background()
	m, baseLedger, quoteLedger := newTestMarket(t)
	alice := common.AddressFromSeed("alice")
	bob := common.AddressFromSeed("bob")

	baseLedger.Credit(alice, 10)
	quoteLedger.Credit(bob, 15*common.Scale)
	require.NoError(t, m.DepositBase(ctx, alice, 5))
	require.NoError(t, m.DepositQuote(ctx, bob, 10*common.Scale))

	_, err := m.PlaceOrder(ctx, alice, common.Sell, common.Scale, 5)
	require.NoError(t, err)

	// Simulate a queue already at its lifetime cap from unrelated prior
	// activity, so this crossing order's one planned fill has nowhere to go.
	m.Events.Count = common.MaxEvents

	beforeAlice := m.Balance(alice)
	beforeBob := m.Balance(bob)
	beforeAsks := m.Asks.ActiveCount
	beforeAskOrder := m.Asks.Orders[0]

	_, err = m.PlaceOrder(ctx, bob, common.Buy, common.Scale, 5)
	assert.ErrorIs(t, err, common.ErrQueueFull)
	assert.Equal(t, beforeAlice, m.Balance(alice))
	assert.Equal(t, beforeBob, m.Balance(bob))
	assert.Equal(t, beforeAsks, m.Asks.ActiveCount)
	assert.Equal(t, beforeAskOrder, m.Asks.Orders[0])
	assert.Equal(t, uint64(0), m.Events.EventsToProcess)
}

func TestCancelOrderRejectsQueueFullBeforeMutatingState(t *testing.T) {
	ctx := context.Background()
	m, _, quoteLedger := newTestMarket(t)
	bob := common.AddressFromSeed("bob")

	quoteLedger.Credit(bob, 12*common.Scale)
	require.NoError(t, m.DepositQuote(ctx, bob, 10*common.Scale))

	orderID, err := m.PlaceOrder(ctx, bob, common.Buy, common.Scale, 2)
	require.NoError(t, err)

	m.Events.Count = common.MaxEvents

	before := m.Balance(bob)
	beforeBids := m.Bids.ActiveCount

	err = m.CancelOrder(bob, orderID)
	assert.ErrorIs(t, err, common.ErrQueueFull)
	assert.Equal(t, before, m.Balance(bob))
	assert.Equal(t, beforeBids, m.Bids.ActiveCount)
	slot, ok := m.Bids.FindByID(orderID)
	assert.True(t, ok)
	assert.Equal(t, 0, slot)
}
