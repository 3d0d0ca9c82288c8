// Command server boots a single-market clob exchange: it wires a Market
// aggregate to a pair of in-memory ledgers, runs the TCP server from
// internal/server and the background event-consuming keeper from
// internal/keeper side by side, and shuts both down on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"clob/internal/common"
	"clob/internal/keeper"
	"clob/internal/ledger"
	"clob/internal/server"
	"clob/internal/wire"
)

func main() {
	address := flag.String("address", "0.0.0.0", "listen address")
	port := flag.Int("port", 9001, "listen port")
	keeperInterval := flag.Duration("keeper-interval", 500*time.Millisecond, "how often the keeper drains the event queue")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	marketAddr := common.AddressFromSeed("market")
	admin := common.AddressFromSeed("admin")

	srv := server.New(*address, *port, ledger.NewMemoryLedger(), ledger.NewMemoryLedger())

	// A market always exists by the time the server starts accepting
	// connections, but it was still created through the same
	// InitializeMarket path a client could reach over the wire.
	if err := srv.InitializeMarket(wire.InitializeMarketMessage{
		Market:           marketAddr,
		BaseMint:         common.AddressFromSeed("base-mint"),
		QuoteMint:        common.AddressFromSeed("quote-mint"),
		BaseVault:        common.AddressFromSeed("base-vault"),
		QuoteVault:       common.AddressFromSeed("quote-vault"),
		Admin:            admin,
		ConsumeAuthority: admin, // the keeper, resolving any account
		MinOrderSize:     1,
		TickSize:         1,
		FeeRateBps:       0, // fees are out of scope (SPEC_FULL.md §1)
	}); err != nil {
		log.Fatal().Err(err).Msg("failed initializing market")
	}

	crank := keeper.New(srv.Market, *keeperInterval, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error { return srv.Run(ctx) })
	t.Go(func() error { return crank.Run(ctx) })

	<-t.Dying()
	if err := t.Err(); err != nil && err != tomb.ErrStillAlive {
		log.Error().Err(err).Msg("server exiting")
		os.Exit(1)
	}
	log.Info().Msg("server shut down")
}
