package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clob/internal/common"
)

func TestMarketDepthAggregatesRestingAsks(t *testing.T) {
	ctx := context.Background()
	m, baseLedger, _ := newTestMarket(t)
	alice := common.AddressFromSeed("alice")

	// Credited above what's deposited: each PlaceOrder pulls its locked
	// quantity from the wallet again, on top of the deposit pull.
	baseLedger.Credit(alice, 20)
	require.NoError(t, m.DepositBase(ctx, alice, 10))

	_, err := m.PlaceOrder(ctx, alice, common.Sell, 2*common.Scale, 3)
	require.NoError(t, err)
	_, err = m.PlaceOrder(ctx, alice, common.Sell, 2*common.Scale, 2)
	require.NoError(t, err)
	_, err = m.PlaceOrder(ctx, alice, common.Sell, 3*common.Scale, 4)
	require.NoError(t, err)

	levels := m.Depth(common.Sell, 10)
	require.Len(t, levels, 2)
	assert.Equal(t, uint64(2*common.Scale), levels[0].Price)
	assert.Equal(t, uint64(5), levels[0].Quantity)
	assert.Equal(t, 2, levels[0].Orders)
	assert.Equal(t, uint64(3*common.Scale), levels[1].Price)
	assert.Equal(t, uint64(4), levels[1].Quantity)
}
