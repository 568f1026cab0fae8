// Package engine implements the matching core: event dispatch, the
// price-time-priority matching walk, identifier/clock minting, and the
// read-only book accessor (spec.md §4.3).
//
// Engine is not safe for concurrent use — by contract, per spec.md §5, the
// caller serializes all OnOrder/OnCancel calls. internal/net's dispatch
// loop is the one place in this repo allowed to call it.
package engine

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"matchcore/internal/book"
	"matchcore/internal/common"
)

// initialTradeID mirrors the original header's "start at a large round
// number" convention (spec.md §4.3.1), kept only so trade ids read as
// exchange trade ids rather than small test-friendly integers.
const initialTradeID common.TradeID = 100_000_000

// Engine dispatches OrderRequest/CancelRequest events against one book per
// symbol. trade_id, engine_time and arrival_seq are per-instance fields
// (spec.md §9 "static mutable counters" note), so multiple Engines can
// coexist in one process, e.g. under test.
type Engine struct {
	books map[common.SymbolID]*book.Book

	nextTradeID common.TradeID
	engineTime  common.Timestamp
	arrivalSeq  uint64

	log zerolog.Logger
}

// New returns an empty engine ready to accept events for any symbol; books
// are created on first use (spec.md §3, Book lifecycle).
func New() *Engine {
	return &Engine{
		books:       make(map[common.SymbolID]*book.Book),
		nextTradeID: initialTradeID,
		log:         log.With().Str("component", "engine").Logger(),
	}
}

func (e *Engine) bookFor(sym common.SymbolID) *book.Book {
	b, ok := e.books[sym]
	if !ok {
		b = book.New(sym)
		e.books[sym] = b
	}
	return b
}

// mintTrade advances the trade id counter, returning the id for the fill
// about to be emitted. trade_id is strictly increasing across all fills
// emitted by this Engine (spec.md §8 invariant 6).
func (e *Engine) mintTrade() common.TradeID {
	id := e.nextTradeID
	e.nextTradeID++
	return id
}

// tick advances engine_time once per accepted inbound event and returns
// the new value, which is stamped on any fills that event emits. Not the
// client-supplied Timestamp (spec.md §4.3.1).
func (e *Engine) tick() common.Timestamp {
	e.engineTime++
	return e.engineTime
}

// crosses implements the crossing test of spec.md §4.3.2 step 2b.
func crosses(req common.OrderRequest, bestOpp common.Price) bool {
	if req.Type == common.Market {
		return true
	}
	if req.Side == common.Buy {
		return req.Price >= bestOpp
	}
	return req.Price <= bestOpp
}

// OnOrder runs the matching algorithm for one inbound order and returns
// the ordered list of fills it produced (spec.md §4.3.2). Returns
// ErrDuplicateOrderID or ErrZeroQuantity without mutating any state or
// advancing engine_time when the precondition is violated — these are
// caller errors, not emitted trades (spec.md §7).
func (e *Engine) OnOrder(req common.OrderRequest) ([]common.Fill, error) {
	if req.Qty == 0 {
		return nil, common.ErrZeroQuantity
	}
	b := e.bookFor(req.Sym)
	if b.IsLive(req.ID) {
		return nil, common.ErrDuplicateOrderID
	}

	ts := e.tick()
	remaining := req.Qty
	opp := req.Side.Opposite()
	var fills []common.Fill

	for remaining > 0 {
		lvl, ok := b.BestLevel(opp)
		if !ok {
			break
		}
		if !crosses(req, lvl.Price) {
			break
		}
		maker := lvl.Head()

		tradeQty := remaining
		if maker.RemainingQty < tradeQty {
			tradeQty = maker.RemainingQty
		}

		fills = append(fills, common.Fill{
			TradeID:   e.mintTrade(),
			TakerID:   req.ID,
			MakerID:   maker.ID,
			Sym:       req.Sym,
			TakerSide: req.Side,
			Price:     maker.Price,
			Qty:       tradeQty,
			TS:        ts,
		})

		remaining -= tradeQty
		b.ConsumeHead(lvl, tradeQty)
	}

	switch {
	case remaining > 0 && req.Type == common.Limit:
		e.arrivalSeq++
		b.InsertResting(&book.RestingOrder{
			ID:           req.ID,
			Sym:          req.Sym,
			Side:         req.Side,
			Price:        req.Price,
			RemainingQty: remaining,
			ArrivalTS:    req.TS,
			ArrivalSeq:   e.arrivalSeq,
		})
	case remaining > 0 && req.Type == common.Market:
		// Market remainder is silently discarded: not an error
		// (spec.md §7, MarketRemainderUnfilled).
		e.log.Debug().
			Uint64("order_id", uint64(req.ID)).
			Uint64("discarded_qty", uint64(remaining)).
			Msg("market order remainder discarded")
	}

	return fills, nil
}

// IsLive reports whether an order id still rests on the book for sym. Used
// by transport layers to prune their own bookkeeping once a maker is
// fully consumed without the core needing to know transport exists.
func (e *Engine) IsLive(sym common.SymbolID, id common.OrderID) bool {
	b, ok := e.books[sym]
	if !ok {
		return false
	}
	return b.IsLive(id)
}

// OnCancel removes a resting order from the book identified by req.Sym.
// Returns true iff an order was removed. engine_time still advances;
// no fills are produced (spec.md §4.3.3).
func (e *Engine) OnCancel(req common.CancelRequest) bool {
	e.tick()
	b := e.bookFor(req.Sym)
	return b.Cancel(req.ID)
}

// BookView is the read-only per-side snapshot returned by Book(sym),
// spec.md §4.3.4.
type BookView struct {
	Bids []book.LevelView
	Asks []book.LevelView
}

// Book returns a read-only, best-first view of the book for a symbol. A
// symbol with no events yet returns an empty view without creating a book.
func (e *Engine) Book(sym common.SymbolID) BookView {
	b, ok := e.books[sym]
	if !ok {
		return BookView{}
	}
	return BookView{
		Bids: b.Levels(common.Buy),
		Asks: b.Levels(common.Sell),
	}
}
