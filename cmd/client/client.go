// Command client is a minimal CLI driving the wire protocol in
// internal/wire: init-market, deposit, place, cancel, settle and log-book
// actions against a running clob server, with execution/depth reports
// printed as they arrive.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"clob/internal/common"
	"clob/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the exchange server")
	owner := flag.String("owner", "", "owner identity seed, e.g. 'alice' (compulsory, except for -action=log-book and -action=init-market, where it seeds the admin/consume authority)")
	action := flag.String("action", "place", "action to perform: init-market, deposit-base, deposit-quote, place, cancel, settle, log-book")
	sideStr := flag.String("side", "buy", "order side for -action=place or -action=log-book: 'buy' or 'sell'")
	price := flag.Uint64("price", 0, "limit price, fixed-point scaled by 1e9, for -action=place")
	qty := flag.Uint64("qty", 0, "quantity for -action=place or -action=deposit-*")
	orderID := flag.Uint64("order-id", 0, "order id for -action=cancel")
	levels := flag.Uint64("levels", 10, "number of price levels to show for -action=log-book")
	marketSeed := flag.String("market-seed", "market", "market identity seed for -action=init-market")
	minOrderSize := flag.Uint64("min-order-size", 1, "minimum order size for -action=init-market")
	tickSize := flag.Uint64("tick-size", 1, "tick size for -action=init-market")
	feeRateBps := flag.Uint64("fee-rate-bps", 0, "fee rate in basis points for -action=init-market")
	flag.Parse()

	actionLower := strings.ToLower(*action)
	if *owner == "" && actionLower != "init-market" && actionLower != "log-book" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}
	ownerAddr := common.AddressFromSeed(*owner)

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as %q\n", *serverAddr, *owner)

	go readReports(conn)

	var raw []byte
	switch strings.ToLower(*action) {
	case "init-market":
		raw = wire.InitializeMarketMessage{
			Market:           common.AddressFromSeed(*marketSeed),
			BaseMint:         common.AddressFromSeed(*marketSeed + "-base-mint"),
			QuoteMint:        common.AddressFromSeed(*marketSeed + "-quote-mint"),
			BaseVault:        common.AddressFromSeed(*marketSeed + "-base-vault"),
			QuoteVault:       common.AddressFromSeed(*marketSeed + "-quote-vault"),
			Admin:            ownerAddr,
			ConsumeAuthority: ownerAddr,
			MinOrderSize:     *minOrderSize,
			TickSize:         *tickSize,
			FeeRateBps:       *feeRateBps,
		}.Serialize()
	case "deposit-base":
		raw = wire.DepositMessage{Owner: ownerAddr, Quantity: *qty}.Serialize(wire.OpDepositBase)
	case "deposit-quote":
		raw = wire.DepositMessage{Owner: ownerAddr, Quantity: *qty}.Serialize(wire.OpDepositQuote)
	case "place":
		side := common.Buy
		if strings.ToLower(*sideStr) == "sell" {
			side = common.Sell
		}
		raw = wire.PlaceOrderMessage{Owner: ownerAddr, Side: side, Price: *price, Quantity: *qty}.Serialize()
	case "cancel":
		raw = wire.CancelOrderMessage{Owner: ownerAddr, OrderID: *orderID}.Serialize()
	case "settle":
		raw = wire.SettleBalanceMessage{Owner: ownerAddr}.Serialize()
	case "log-book":
		side := common.Buy
		if strings.ToLower(*sideStr) == "sell" {
			side = common.Sell
		}
		raw = wire.LogBookMessage{Side: side, Levels: uint16(*levels)}.Serialize()
	default:
		log.Fatalf("unknown action: %s", *action)
	}

	if _, err := conn.Write(raw); err != nil {
		log.Fatalf("failed to send request: %v", err)
	}
	fmt.Printf("-> sent %s\n", *action)

	fmt.Println("\nlistening for reports... (press Ctrl+C to exit)")
	select {}
}

// readReports parses wire.Report frames as they arrive. Each frame is
// self-describing (a fixed 11-byte header plus a tail_len-sized tail holding
// either an error string or price level records), so
// unlike a fixed-record protocol there is no outer framing to strip.
func readReports(conn net.Conn) {
	const headerLen = 1 + 8 + 2
	for {
		header := make([]byte, headerLen)
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}

		kind := wire.ReportKind(header[0])
		orderID := binary.BigEndian.Uint64(header[1:9])
		tailLen := binary.BigEndian.Uint16(header[9:11])

		tail := make([]byte, tailLen)
		if tailLen > 0 {
			if _, err := io.ReadFull(conn, tail); err != nil {
				log.Printf("error reading report tail: %v", err)
				return
			}
		}

		switch kind {
		case wire.ReportError:
			fmt.Printf("\n[error] %s\n", string(tail))
		case wire.ReportDepth:
			const priceLevelLen = 8 + 8 + 4
			fmt.Println("\n[book]")
			for off := 0; off+priceLevelLen <= len(tail); off += priceLevelLen {
				price := binary.BigEndian.Uint64(tail[off:])
				quantity := binary.BigEndian.Uint64(tail[off+8:])
				orders := binary.BigEndian.Uint32(tail[off+16:])
				fmt.Printf("  price=%d quantity=%d orders=%d\n", price, quantity, orders)
			}
		default:
			fmt.Printf("\n[ok] order_id=%d\n", orderID)
		}
	}
}
