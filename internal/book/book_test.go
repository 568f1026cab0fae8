package book_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/book"
	"matchcore/internal/common"
)

const sym common.SymbolID = 1

func resting(id common.OrderID, side common.Side, px common.Price, qty common.Quantity, seq uint64) *book.RestingOrder {
	return &book.RestingOrder{ID: id, Sym: sym, Side: side, Price: px, RemainingQty: qty, ArrivalSeq: seq}
}

func TestInsertRestingCreatesLevelAndIndex(t *testing.T) {
	b := book.New(sym)
	b.InsertResting(resting(1, common.Buy, 100, 10, 1))

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, common.Price(100), bid)
	assert.True(t, b.IsLive(1))
}

func TestInsertRestingAppendsSameLevel(t *testing.T) {
	b := book.New(sym)
	b.InsertResting(resting(1, common.Sell, 100, 10, 1))
	b.InsertResting(resting(2, common.Sell, 100, 5, 2))

	lvl, ok := b.BestLevel(common.Sell)
	require.True(t, ok)
	assert.Equal(t, common.Quantity(15), lvl.TotalQty())
	assert.Equal(t, common.OrderID(1), lvl.Orders.Front().Value.(*book.RestingOrder).ID)
}

func TestBestBidAskOrdering(t *testing.T) {
	b := book.New(sym)
	b.InsertResting(resting(1, common.Buy, 99, 10, 1))
	b.InsertResting(resting(2, common.Buy, 101, 10, 2))
	b.InsertResting(resting(3, common.Sell, 105, 10, 3))
	b.InsertResting(resting(4, common.Sell, 103, 10, 4))

	bid, _ := b.BestBid()
	ask, _ := b.BestAsk()
	assert.Equal(t, common.Price(101), bid)
	assert.Equal(t, common.Price(103), ask)
}

func TestCancelRemovesOrderAndEmptiesLevel(t *testing.T) {
	b := book.New(sym)
	b.InsertResting(resting(1, common.Buy, 100, 10, 1))

	assert.True(t, b.Cancel(1))
	assert.False(t, b.IsLive(1))
	_, ok := b.BestBid()
	assert.False(t, ok)
}

func TestCancelUnknownIDReturnsFalse(t *testing.T) {
	b := book.New(sym)
	assert.False(t, b.Cancel(999))
}

func TestCancelLeavesOtherOrdersOnLevel(t *testing.T) {
	b := book.New(sym)
	b.InsertResting(resting(1, common.Buy, 100, 10, 1))
	b.InsertResting(resting(2, common.Buy, 100, 5, 2))

	assert.True(t, b.Cancel(1))
	lvl, ok := b.BestLevel(common.Buy)
	require.True(t, ok)
	assert.Equal(t, common.Quantity(5), lvl.TotalQty())
	assert.Equal(t, common.OrderID(2), lvl.Orders.Front().Value.(*book.RestingOrder).ID)
}

func TestConsumeHeadPartial(t *testing.T) {
	b := book.New(sym)
	b.InsertResting(resting(1, common.Sell, 100, 10, 1))

	lvl, _ := b.BestLevel(common.Sell)
	b.ConsumeHead(lvl, 4)

	assert.Equal(t, common.Quantity(6), lvl.TotalQty())
	assert.True(t, b.IsLive(1))
}

func TestConsumeHeadFullRemovesOrderAndLevel(t *testing.T) {
	b := book.New(sym)
	b.InsertResting(resting(1, common.Sell, 100, 10, 1))

	lvl, _ := b.BestLevel(common.Sell)
	b.ConsumeHead(lvl, 10)

	assert.False(t, b.IsLive(1))
	_, ok := b.BestAsk()
	assert.False(t, ok)
}

func TestLevelsBestFirstOrder(t *testing.T) {
	b := book.New(sym)
	b.InsertResting(resting(1, common.Sell, 105, 1, 1))
	b.InsertResting(resting(2, common.Sell, 100, 1, 2))
	b.InsertResting(resting(3, common.Sell, 103, 1, 3))

	levels := b.Levels(common.Sell)
	require.Len(t, levels, 3)
	assert.Equal(t, common.Price(100), levels[0].Price)
	assert.Equal(t, common.Price(103), levels[1].Price)
	assert.Equal(t, common.Price(105), levels[2].Price)
}
