// Package book implements the per-symbol order book: a pair of ordered
// price-level collections plus an id index, per spec.md §4.2.
package book

import (
	"container/list"

	"github.com/tidwall/btree"

	"matchcore/internal/common"
)

// orderRef is the id_index's non-owning pointer into a level's FIFO: the
// level that owns the order plus the list element backing it. Removing an
// order means unlinking elem from level.Orders and deleting the index
// entry — the two always happen together within a single step (spec.md
// §3, Ownership).
type orderRef struct {
	level *PriceLevel
	elem  *list.Element
}

type levelTree = btree.BTreeG[*PriceLevel]

// Book holds both sides of one symbol's order book: bids ordered best
// (highest price) first, asks ordered best (lowest price) first, and an
// id index for O(1) cancel.
type Book struct {
	Sym  common.SymbolID
	bids *levelTree
	asks *levelTree

	// index maps every live order id in this book to its resting
	// location. Bijective with the union of resting order ids (spec.md
	// §8 invariant 3).
	index map[common.OrderID]*orderRef
}

// New creates an empty book for a symbol.
func New(sym common.SymbolID) *Book {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price // descending: Min() yields the best (highest) bid.
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price // ascending: Min() yields the best (lowest) ask.
	})
	return &Book{
		Sym:   sym,
		bids:  bids,
		asks:  asks,
		index: make(map[common.OrderID]*orderRef),
	}
}

func (b *Book) sideTree(side common.Side) *levelTree {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

// BestBid returns the highest resting bid price, or false if there are no
// bids.
func (b *Book) BestBid() (common.Price, bool) {
	lvl, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest resting ask price, or false if there are no
// asks.
func (b *Book) BestAsk() (common.Price, bool) {
	lvl, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// BestLevel returns the best price level on the given side, for use as the
// opposing side of a matching walk (spec.md §4.2, PeekBest).
func (b *Book) BestLevel(side common.Side) (*PriceLevel, bool) {
	return b.sideTree(side).MinMut()
}

// IsLive reports whether an order id currently rests in this book.
func (b *Book) IsLive(id common.OrderID) bool {
	_, ok := b.index[id]
	return ok
}

// InsertResting creates (or reuses) the level at (order.Side, order.Price),
// appends the order to its tail, and registers it in the id index.
// Precondition: order.ID is not already live in this book.
func (b *Book) InsertResting(o *RestingOrder) {
	tree := b.sideTree(o.Side)
	probe := &PriceLevel{Price: o.Price}
	lvl, ok := tree.GetMut(probe)
	if !ok {
		lvl = newPriceLevel(o.Side, o.Price)
		tree.Set(lvl)
	}
	elem := lvl.append(o)
	b.index[o.ID] = &orderRef{level: lvl, elem: elem}
}

// Cancel removes a live order by id. Returns false if the id is not live
// in this book (spec.md §4.3.3): an expected outcome, not an error.
func (b *Book) Cancel(id common.OrderID) bool {
	ref, ok := b.index[id]
	if !ok {
		return false
	}
	ref.level.remove(ref.elem)
	delete(b.index, id)
	if ref.level.IsEmpty() {
		b.sideTree(ref.level.Side).Delete(ref.level)
	}
	return true
}

// ConsumeHead reduces the head order of lvl by qty, removing it (and the
// level, if now empty) when fully consumed. Mirrors Book::apply_fill_to_maker
// in spec.md §4.2.
func (b *Book) ConsumeHead(lvl *PriceLevel, qty common.Quantity) {
	drainedID, drained := lvl.consumeHead(qty)
	if drained {
		delete(b.index, drainedID)
	}
	if lvl.IsEmpty() {
		b.sideTree(lvl.Side).Delete(lvl)
	}
}

// LevelView is a read-only (price, total quantity) snapshot of one level,
// for the book(sym) inspection accessor (spec.md §4.3.4).
type LevelView struct {
	Price common.Price
	Qty   common.Quantity
}

// Levels returns a best-first snapshot of one side of the book.
func (b *Book) Levels(side common.Side) []LevelView {
	tree := b.sideTree(side)
	views := make([]LevelView, 0, tree.Len())
	tree.Scan(func(lvl *PriceLevel) bool {
		views = append(views, LevelView{Price: lvl.Price, Qty: lvl.TotalQty()})
		return true
	})
	return views
}
