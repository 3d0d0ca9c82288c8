// Package server exposes a Market over the TCP wire protocol of
// SPEC_FULL.md §6.1: a tomb-supervised accept loop handing connections to
// a worker pool, a session handler serialising message handling, and
// Report framing pushed back to the client.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"clob/internal/common"
	"clob/internal/ledger"
	"clob/internal/market"
	"clob/internal/wire"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 5 * time.Second
)

// clientSession tracks one connected TCP session, tagged with a uuid for
// log correlation.
type clientSession struct {
	conn      net.Conn
	sessionID string
}

type clientMessage struct {
	clientAddress string
	raw           []byte
}

// Server dispatches client connections onto a worker pool that serialises
// request handling onto the market's own transaction lock. The market
// itself is created lazily, by an InitializeMarket request, rather than at
// construction — marketMu guards the handful of reads/writes of the pointer
// that happen outside the market's own internal locking.
type Server struct {
	address string
	port    int

	baseLedger  ledger.TokenLedger
	quoteLedger ledger.TokenLedger

	marketMu sync.Mutex
	market   *market.Market

	pool WorkerPool

	cancel             context.CancelFunc
	clientSessions     map[string]clientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan clientMessage
}

// New constructs a Server listening on address:port, with no market until
// InitializeMarket succeeds. baseLedger and quoteLedger back whatever
// market that request eventually creates.
func New(address string, port int, baseLedger, quoteLedger ledger.TokenLedger) *Server {
	return &Server{
		address:        address,
		port:           port,
		baseLedger:     baseLedger,
		quoteLedger:    quoteLedger,
		pool:           NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]clientSession),
		clientMessages: make(chan clientMessage, 1),
	}
}

// Market returns the server's current market, or nil before
// InitializeMarket has run. It is safe to pass as a keeper market provider.
func (s *Server) Market() *market.Market {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()
	return s.market
}

// InitializeMarket validates req and, if no market exists yet, constructs
// one and makes it live for every subsequent request. Returns
// ErrAccountAlreadyInitialized if called a second time (SPEC_FULL.md §7
// kind 1).
func (s *Server) InitializeMarket(req wire.InitializeMarketMessage) error {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()
	if s.market != nil {
		return common.ErrAccountAlreadyInitialized
	}
	m, err := market.InitializeMarket(
		req.Market, req.BaseMint, req.QuoteMint, req.BaseVault, req.QuoteVault,
		req.MinOrderSize, req.TickSize, req.FeeRateBps,
		req.Admin, req.ConsumeAuthority,
		s.baseLedger, s.quoteLedger,
	)
	if err != nil {
		return err
	}
	s.market = m
	return nil
}

// Run blocks, accepting connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("server: unable to listen: %w", err)
	}
	defer listener.Close()
	// Closing the listener is what unblocks a pending Accept once ctx is done.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
			s.addClientSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	s.clientSessions[conn.RemoteAddr().String()] = clientSession{conn: conn, sessionID: uuid.New().String()}
}

func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	delete(s.clientSessions, address)
}

func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return fmt.Errorf("server: unexpected task type %T", task)
	}
	// The connection stays open after a successful read: it is re-queued
	// for its next request, and its reply is written back to it later.

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed setting deadline")
		conn.Close()
		return nil
	}

	buf := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		conn.Close()
		return nil
	default:
		n, err := conn.Read(buf)
		if err != nil {
			s.deleteClientSession(conn.RemoteAddr().String())
			conn.Close()
			return nil
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		s.clientMessages <- clientMessage{clientAddress: conn.RemoteAddr().String(), raw: raw}
		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.clientMessages:
			s.handleMessage(msg)
		}
	}
}

func (s *Server) handleMessage(msg clientMessage) {
	req, err := wire.Parse(msg.raw)
	if err != nil {
		s.reply(msg.clientAddress, wire.Report{Kind: wire.ReportError, ErrorMsg: err.Error()})
		return
	}

	ctx := context.Background()
	var orderID uint64
	var levels []wire.PriceLevel
	if req.Op == wire.OpInitializeMarket {
		err = s.InitializeMarket(req.InitializeMarket)
	} else if m := s.Market(); m == nil {
		err = common.ErrMarketNotInitialized
	} else {
		switch req.Op {
		case wire.OpDepositBase:
			err = m.DepositBase(ctx, req.Deposit.Owner, req.Deposit.Quantity)
		case wire.OpDepositQuote:
			err = m.DepositQuote(ctx, req.Deposit.Owner, req.Deposit.Quantity)
		case wire.OpPlaceOrder:
			orderID, err = m.PlaceOrder(ctx, req.PlaceOrder.Owner, req.PlaceOrder.Side, req.PlaceOrder.Price, req.PlaceOrder.Quantity)
		case wire.OpCancelOrder:
			err = m.CancelOrder(req.CancelOrder.Owner, req.CancelOrder.OrderID)
		case wire.OpSettleBalance:
			err = m.SettleBalance(ctx, req.SettleBalance.Owner)
		case wire.OpConsumeEvents:
			m.ConsumeEvents(req.ConsumeEvents.Resolvable)
		case wire.OpLogBook:
			for _, lvl := range m.Depth(req.LogBook.Side, int(req.LogBook.Levels)) {
				levels = append(levels, wire.PriceLevel{Price: lvl.Price, Quantity: lvl.Quantity, Orders: uint32(lvl.Orders)})
			}
		}
	}

	if err != nil {
		log.Error().Err(err).Str("clientAddress", msg.clientAddress).Int("op", int(req.Op)).Msg("operation rejected")
		s.reply(msg.clientAddress, wire.Report{Kind: wire.ReportError, ErrorMsg: err.Error()})
		return
	}
	if req.Op == wire.OpLogBook {
		s.reply(msg.clientAddress, wire.Report{Kind: wire.ReportDepth, Levels: levels})
		return
	}
	log.Info().Str("clientAddress", msg.clientAddress).Int("op", int(req.Op)).Uint64("orderID", orderID).Msg("operation accepted")
	s.reply(msg.clientAddress, wire.Report{Kind: wire.ReportExecution, OrderID: orderID})
}

func (s *Server) reply(clientAddress string, report wire.Report) {
	s.clientSessionsLock.Lock()
	session, ok := s.clientSessions[clientAddress]
	s.clientSessionsLock.Unlock()
	if !ok {
		return
	}
	if _, err := session.conn.Write(report.Serialize()); err != nil {
		log.Error().Err(err).Str("clientAddress", clientAddress).Msg("failed writing report")
		s.deleteClientSession(clientAddress)
	}
}
