package keeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clob/internal/common"
	"clob/internal/ledger"
	"clob/internal/market"
)

func TestKeeperNoOpsWithoutAMarket(t *testing.T) {
	k := New(func() *market.Market { return nil }, 5*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := k.Run(ctx)
	require.NoError(t, err)
}

func TestKeeperRunsCleanlyOnceAMarketExists(t *testing.T) {
	marketID := common.AddressFromSeed("market")

	var m *market.Market
	initialized := make(chan struct{})
	provider := func() *market.Market {
		select {
		case <-initialized:
			return m
		default:
			return nil
		}
	}

	alice := common.AddressFromSeed("alice")
	baseLedger := ledger.NewMemoryLedger()
	quoteLedger := ledger.NewMemoryLedger()
	baseLedger.Credit(alice, 10)

	built, buildErr := market.InitializeMarket(
		marketID,
		common.AddressFromSeed("base-mint"), common.AddressFromSeed("quote-mint"),
		common.AddressFromSeed("base-vault"), common.AddressFromSeed("quote-vault"),
		1, 1, 0,
		common.AddressFromSeed("admin"), common.AddressFromSeed("keeper"),
		baseLedger, quoteLedger,
	)
	require.NoError(t, buildErr)
	require.NoError(t, built.DepositBase(context.Background(), alice, 5))
	m = built
	close(initialized)

	k := New(provider, 5*time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	assert.NoError(t, k.Run(ctx))
}
