// Package net is the TCP transport around the matching core: it decodes
// wire messages, serializes every engine call through one dispatch
// goroutine (so the core's single-threaded contract holds even though
// connections are handled concurrently), and reports fills/errors back to
// clients. Grounded on the teacher's internal/net/server.go accept
// loop/session map/report style.
package net

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchcore/internal/book"
	"matchcore/internal/common"
	"matchcore/internal/engine"
	"matchcore/internal/metrics"
	"matchcore/internal/workerpool"
)

const (
	maxFrameLen        = 64 * 1024
	defaultConnTimeout = 30 * time.Second
)

var (
	ErrImproperConversion = errors.New("matchcore/net: improper task conversion")
	ErrFrameTooLarge      = errors.New("matchcore/net: frame exceeds maximum size")
	ErrSymbolNotAllowed   = errors.New("matchcore/net: symbol not in allowlist")
)

// clientSession is one accepted TCP connection, keyed by a server-minted
// session id rather than the teacher's conn.LocalAddr().String() (which
// collides when many local test clients share a loopback address).
type clientSession struct {
	id   uuid.UUID
	conn net.Conn
}

// clientMessage links a decoded wire message to the session that sent it.
type clientMessage struct {
	sessionID uuid.UUID
	message   Message
}

// Server accepts order-entry connections, reads messages concurrently via
// a worker pool, and dispatches every engine call through a single
// goroutine (dispatchLoop).
type Server struct {
	addr    string
	engine  *engine.Engine
	metrics *metrics.Collector
	pool    *workerpool.Pool

	// allowedSymbols, when non-empty, is the only set of symbols the
	// server accepts NewOrder/CancelOrder requests for. Empty means no
	// restriction (config.Config.Symbols unset).
	allowedSymbols map[common.SymbolID]struct{}

	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[uuid.UUID]*clientSession

	// orderOwner remembers which session owns a resting order so that,
	// when a later taker fills it, the report can still reach the
	// maker's original connection.
	orderOwner map[common.OrderID]uuid.UUID

	clientMessages chan clientMessage
}

// New builds a Server bound to addr, driving eng, reporting through m, and
// reading connections with a pool of `workers` goroutines. allowedSymbols
// restricts which symbols are accepted; pass nil or an empty map to accept
// any symbol.
func New(addr string, eng *engine.Engine, m *metrics.Collector, workers int, allowedSymbols map[common.SymbolID]struct{}) *Server {
	return &Server{
		addr:           addr,
		engine:         eng,
		metrics:        m,
		pool:           workerpool.New(workers),
		allowedSymbols: allowedSymbols,
		sessions:       make(map[uuid.UUID]*clientSession),
		orderOwner:     make(map[common.OrderID]uuid.UUID),
		clientMessages: make(chan clientMessage, 64),
	}
}

// symbolAllowed reports whether sym may be submitted to, since an empty
// allowedSymbols means no restriction.
func (s *Server) symbolAllowed(sym common.SymbolID) bool {
	if len(s.allowedSymbols) == 0 {
		return true
	}
	_, ok := s.allowedSymbols[sym]
	return ok
}

// Run accepts connections until ctx is canceled. It starts the worker
// pool (reads) and the single dispatch goroutine (engine calls) before
// entering the accept loop.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("matchcore/net: listen: %w", err)
	}
	defer listener.Close()

	// Cancellation closes the listener, which unblocks Accept, and every
	// open session, which unblocks any worker waiting in readFrame.
	go func() {
		<-ctx.Done()
		_ = listener.Close()
		s.sessionsMu.Lock()
		for _, session := range s.sessions {
			_ = session.conn.Close()
		}
		s.sessionsMu.Unlock()
	}()

	t.Go(func() error {
		s.pool.Run(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.dispatchLoop(t)
	})

	log.Info().Str("addr", s.addr).Msg("order-entry server listening")

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
			session := s.addSession(conn)
			log.Info().Str("session", session.id.String()).Str("remote", conn.RemoteAddr().String()).Msg("client connected")
			s.pool.AddTask(connTask{session: session})
		}
	}
}

// Shutdown stops the accept loop and all in-flight workers.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

type connTask struct {
	session *clientSession
}

// handleConnection reads exactly one frame off a connection, forwards it
// to the dispatch goroutine, and — unless the connection died — re-queues
// itself as a fresh task. This is the teacher's "read one message, push
// the connection back to the pool" idiom. The read blocks the worker until
// a frame arrives or defaultConnTimeout passes, and a connection that sends
// nothing within that time is closed; a worker waiting on an idle
// connection serves no other, so at most `workers` connections are read
// at once.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	ct, ok := task.(connTask)
	if !ok {
		return ErrImproperConversion
	}
	conn := ct.session.conn

	select {
	case <-t.Dying():
		return nil
	default:
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultConnTimeout))
	frame, err := readFrame(conn)
	if err != nil {
		if err != io.EOF {
			log.Error().Err(err).Str("session", ct.session.id.String()).Msg("error reading frame")
		}
		s.closeSession(ct.session)
		return nil
	}

	msg, err := ParseMessage(frame)
	if err != nil {
		log.Error().Err(err).Str("session", ct.session.id.String()).Msg("error parsing message")
	} else {
		s.clientMessages <- clientMessage{sessionID: ct.session.id, message: msg}
	}

	s.pool.AddTask(ct)
	return nil
}

// readFrame reads one 4-byte-length-prefixed frame body.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [LengthPrefixLen]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// dispatchLoop is the single goroutine allowed to call into the engine,
// preserving its single-threaded contract (spec.md §5) while connections
// are read concurrently by the worker pool.
func (s *Server) dispatchLoop(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cm := <-s.clientMessages:
			s.handleMessage(cm)
		}
	}
}

func (s *Server) handleMessage(cm clientMessage) {
	switch m := cm.message.(type) {
	case NewOrderMessage:
		s.handleNewOrder(cm.sessionID, m)
	case CancelOrderMessage:
		s.handleCancelOrder(cm.sessionID, m)
	case LogBookMessage:
		s.handleLogBook(cm.sessionID, m)
	default:
		log.Error().Str("session", cm.sessionID.String()).Msg("unhandled message type")
	}
}

func (s *Server) handleNewOrder(sessionID uuid.UUID, m NewOrderMessage) {
	req := m.Request()
	if !s.symbolAllowed(req.Sym) {
		s.recordOrderMetric(req, "rejected")
		s.sendError(sessionID, fmt.Errorf("%w: %d", ErrSymbolNotAllowed, req.Sym))
		return
	}

	start := time.Now()
	fills, err := s.engine.OnOrder(req)
	s.metrics.MatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.recordOrderMetric(req, "rejected")
		s.sendError(sessionID, err)
		return
	}

	switch {
	case len(fills) > 0:
		s.recordOrderMetric(req, "matched")
	case req.Type == common.Market:
		s.recordOrderMetric(req, "discarded")
	default:
		s.recordOrderMetric(req, "rested")
	}

	// Track ownership: if anything of this order still rests, remember
	// which session placed it so a later maker-side fill can reach it.
	s.trackOwnership(sessionID, req, fills)

	for _, f := range fills {
		s.metrics.FillsTotal.Inc()
		s.metrics.FillQuantity.Observe(float64(f.Qty))
		s.reportFill(sessionID, f)
	}
}

func (s *Server) handleCancelOrder(sessionID uuid.UUID, m CancelOrderMessage) {
	req := m.Request()
	if !s.symbolAllowed(req.Sym) {
		s.metrics.CancelsTotal.WithLabelValues("unknown").Inc()
		s.sendError(sessionID, fmt.Errorf("%w: %d", ErrSymbolNotAllowed, req.Sym))
		return
	}

	ok := s.engine.OnCancel(req)
	if ok {
		s.metrics.CancelsTotal.WithLabelValues("removed").Inc()
		s.sessionsMu.Lock()
		delete(s.orderOwner, req.ID)
		s.sessionsMu.Unlock()
		return
	}
	s.metrics.CancelsTotal.WithLabelValues("unknown").Inc()
	s.sendError(sessionID, fmt.Errorf("matchcore: unknown order id %d", req.ID))
}

func (s *Server) handleLogBook(sessionID uuid.UUID, m LogBookMessage) {
	if !s.symbolAllowed(m.Sym) {
		s.sendError(sessionID, fmt.Errorf("%w: %d", ErrSymbolNotAllowed, m.Sym))
		return
	}
	view := s.engine.Book(m.Sym)
	log.Info().Uint64("sym", uint64(m.Sym)).Int("bids", len(view.Bids)).Int("asks", len(view.Asks)).Msg("log book requested")
	s.sendTo(sessionID, Report{
		Type: BookSnapshotReport,
		Sym:  m.Sym,
		Bids: toBookLevels(view.Bids),
		Asks: toBookLevels(view.Asks),
	})
}

func toBookLevels(views []book.LevelView) []BookLevel {
	levels := make([]BookLevel, len(views))
	for i, v := range views {
		levels[i] = BookLevel{Price: v.Price, Qty: v.Qty}
	}
	return levels
}

func (s *Server) recordOrderMetric(req common.OrderRequest, outcome string) {
	s.metrics.OrdersTotal.WithLabelValues(req.Type.String(), req.Side.String(), outcome).Inc()
}

// trackOwnership records the submitting session as the owner of any
// residual resting quantity, so future fills against it can be routed.
func (s *Server) trackOwnership(sessionID uuid.UUID, req common.OrderRequest, fills []common.Fill) {
	filled := common.Quantity(0)
	for _, f := range fills {
		filled += f.Qty
	}
	rests := req.Type == common.Limit && req.Qty > filled
	if !rests {
		return
	}
	s.sessionsMu.Lock()
	s.orderOwner[req.ID] = sessionID
	s.sessionsMu.Unlock()
}

func (s *Server) reportFill(takerSession uuid.UUID, f common.Fill) {
	report := Report{Type: ExecutionReport, Fill: f}
	s.sendTo(takerSession, report)

	s.sessionsMu.Lock()
	makerSession, ok := s.orderOwner[f.MakerID]
	if ok && !s.engine.IsLive(f.Sym, f.MakerID) {
		delete(s.orderOwner, f.MakerID)
	}
	s.sessionsMu.Unlock()
	if ok {
		s.sendTo(makerSession, report)
	}
}

func (s *Server) sendError(sessionID uuid.UUID, err error) {
	s.sendTo(sessionID, Report{Type: ErrorReport, ErrMsg: err.Error()})
}

func (s *Server) sendTo(sessionID uuid.UUID, report Report) {
	s.sessionsMu.Lock()
	session, ok := s.sessions[sessionID]
	s.sessionsMu.Unlock()
	if !ok {
		return
	}
	if _, err := session.conn.Write(report.Encode()); err != nil {
		log.Error().Err(err).Str("session", sessionID.String()).Msg("error writing report")
	}
}

func (s *Server) addSession(conn net.Conn) *clientSession {
	session := &clientSession{id: uuid.New(), conn: conn}
	s.sessionsMu.Lock()
	s.sessions[session.id] = session
	s.sessionsMu.Unlock()
	return session
}

func (s *Server) closeSession(session *clientSession) {
	s.sessionsMu.Lock()
	delete(s.sessions, session.id)
	s.sessionsMu.Unlock()
	_ = session.conn.Close()
}
