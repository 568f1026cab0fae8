package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/common"
	"matchcore/internal/engine"
)

const sym common.SymbolID = 1

func limitBuy(id common.OrderID, px common.Price, qty common.Quantity, ts common.Timestamp) common.OrderRequest {
	return common.OrderRequest{ID: id, Sym: sym, Side: common.Buy, Type: common.Limit, Price: px, Qty: qty, TS: ts}
}

func limitSell(id common.OrderID, px common.Price, qty common.Quantity, ts common.Timestamp) common.OrderRequest {
	return common.OrderRequest{ID: id, Sym: sym, Side: common.Sell, Type: common.Limit, Price: px, Qty: qty, TS: ts}
}

func marketBuy(id common.OrderID, qty common.Quantity, ts common.Timestamp) common.OrderRequest {
	return common.OrderRequest{ID: id, Sym: sym, Side: common.Buy, Type: common.Market, Qty: qty, TS: ts}
}

func marketSell(id common.OrderID, qty common.Quantity, ts common.Timestamp) common.OrderRequest {
	return common.OrderRequest{ID: id, Sym: sym, Side: common.Sell, Type: common.Market, Qty: qty, TS: ts}
}

func cancel(id common.OrderID, ts common.Timestamp) common.CancelRequest {
	return common.CancelRequest{ID: id, Sym: sym, TS: ts}
}

// S1: partial cross, remainder rests, later market sweep.
func TestPartialCrossRestsThenMarketSweep(t *testing.T) {
	eng := engine.New()

	fills, err := eng.OnOrder(limitSell(1, 101, 10, 1000))
	require.NoError(t, err)
	assert.Empty(t, fills)

	fills, err = eng.OnOrder(limitBuy(2, 102, 6, 2000))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, common.OrderID(1), fills[0].MakerID)
	assert.Equal(t, common.OrderID(2), fills[0].TakerID)
	assert.Equal(t, common.Price(101), fills[0].Price)
	assert.Equal(t, common.Quantity(6), fills[0].Qty)
	assert.Equal(t, common.Buy, fills[0].TakerSide)

	fills, err = eng.OnOrder(marketBuy(3, 10, 3000))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, common.OrderID(1), fills[0].MakerID)
	assert.Equal(t, common.Price(101), fills[0].Price)
	assert.Equal(t, common.Quantity(4), fills[0].Qty)
}

// S2: market buy sweeps levels in price order.
func TestMarketBuySweepsLevelsInPriceOrder(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitSell(1, 100, 3, 1000))
	require.NoError(t, err)
	_, err = eng.OnOrder(limitSell(2, 101, 4, 2000))
	require.NoError(t, err)

	fills, err := eng.OnOrder(marketBuy(3, 5, 3000))
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, common.OrderID(1), fills[0].MakerID)
	assert.Equal(t, common.Price(100), fills[0].Price)
	assert.Equal(t, common.Quantity(3), fills[0].Qty)
	assert.Equal(t, common.OrderID(2), fills[1].MakerID)
	assert.Equal(t, common.Price(101), fills[1].Price)
	assert.Equal(t, common.Quantity(2), fills[1].Qty)
}

// S3: price-time priority within a level.
func TestPriceTimePriorityWithinLevel(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitSell(1, 100, 1, 1000))
	require.NoError(t, err)
	_, err = eng.OnOrder(limitSell(2, 100, 2, 2000))
	require.NoError(t, err)

	fills, err := eng.OnOrder(marketBuy(3, 2, 3000))
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, common.OrderID(1), fills[0].MakerID)
	assert.Equal(t, common.Quantity(1), fills[0].Qty)
	assert.Equal(t, common.OrderID(2), fills[1].MakerID)
	assert.Equal(t, common.Quantity(1), fills[1].Qty)
}

// S4: maker-priced aggressive cross.
func TestAggressiveCrossExecutesAtMakerPrice(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitBuy(1, 101, 4, 1000))
	require.NoError(t, err)

	fills, err := eng.OnOrder(limitSell(2, 100, 2, 2000))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, common.OrderID(1), fills[0].MakerID)
	assert.Equal(t, common.OrderID(2), fills[0].TakerID)
	assert.Equal(t, common.Price(101), fills[0].Price) // maker price, not taker's 100
	assert.Equal(t, common.Quantity(2), fills[0].Qty)
	assert.Equal(t, common.Sell, fills[0].TakerSide)
}

// S5: cancel removes resting order.
func TestCancelRemovesRestingOrder(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitSell(1, 101, 5, 1000))
	require.NoError(t, err)

	assert.True(t, eng.OnCancel(cancel(1, 1500)))

	fills, err := eng.OnOrder(marketBuy(2, 5, 2000))
	require.NoError(t, err)
	assert.Empty(t, fills)
}

// S6: cancel of unknown id.
func TestCancelUnknownIDReturnsFalse(t *testing.T) {
	eng := engine.New()
	assert.False(t, eng.OnCancel(cancel(42, 1000)))
}

func TestMarketOnEmptyBookProducesNoFills(t *testing.T) {
	eng := engine.New()
	fills, err := eng.OnOrder(marketBuy(1, 10, 1000))
	require.NoError(t, err)
	assert.Empty(t, fills)

	fills, err = eng.OnOrder(marketSell(2, 10, 2000))
	require.NoError(t, err)
	assert.Empty(t, fills)
}

func TestRestingLimitOrdersMatchWhenCrossedLater(t *testing.T) {
	eng := engine.New()
	fills1, err := eng.OnOrder(limitBuy(1, 99, 5, 1000))
	require.NoError(t, err)
	assert.Empty(t, fills1)

	fills2, err := eng.OnOrder(limitSell(2, 101, 5, 2000))
	require.NoError(t, err)
	assert.Empty(t, fills2)

	fills3, err := eng.OnOrder(marketSell(3, 3, 3000))
	require.NoError(t, err)
	require.Len(t, fills3, 1)
	assert.Equal(t, common.OrderID(1), fills3[0].MakerID)
	assert.Equal(t, common.Price(99), fills3[0].Price)
	assert.Equal(t, common.Quantity(3), fills3[0].Qty)
}

func TestDuplicateOrderIDRejected(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitSell(1, 100, 5, 1000))
	require.NoError(t, err)

	fills, err := eng.OnOrder(limitSell(1, 100, 5, 2000))
	assert.ErrorIs(t, err, common.ErrDuplicateOrderID)
	assert.Empty(t, fills)

	// No state change: the book still shows a single resting order.
	view := eng.Book(sym)
	require.Len(t, view.Asks, 1)
	assert.Equal(t, common.Quantity(5), view.Asks[0].Qty)
}

func TestZeroQuantityRejected(t *testing.T) {
	eng := engine.New()
	fills, err := eng.OnOrder(limitSell(1, 100, 0, 1000))
	assert.ErrorIs(t, err, common.ErrZeroQuantity)
	assert.Empty(t, fills)
	assert.Empty(t, eng.Book(sym).Asks)
}

// Round-trip: place then cancel on an otherwise empty book leaves it empty.
func TestRoundTripPlaceThenCancelLeavesBookEmpty(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitBuy(1, 100, 5, 1000))
	require.NoError(t, err)

	assert.True(t, eng.OnCancel(cancel(1, 1500)))
	view := eng.Book(sym)
	assert.Empty(t, view.Bids)
	assert.Empty(t, view.Asks)
}

// Idempotent cancel.
func TestSecondCancelReturnsFalse(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitBuy(1, 100, 5, 1000))
	require.NoError(t, err)

	assert.True(t, eng.OnCancel(cancel(1, 1500)))
	assert.False(t, eng.OnCancel(cancel(1, 1600)))
}

// trade_id strictly increases across multiple OnOrder calls.
func TestTradeIDStrictlyIncreases(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitSell(1, 100, 10, 1000))
	require.NoError(t, err)

	fillsA, err := eng.OnOrder(marketBuy(2, 3, 2000))
	require.NoError(t, err)
	fillsB, err := eng.OnOrder(marketBuy(3, 3, 3000))
	require.NoError(t, err)

	require.Len(t, fillsA, 1)
	require.Len(t, fillsB, 1)
	assert.Less(t, fillsA[0].TradeID, fillsB[0].TradeID)
}

// Quantity conservation: fills + residual resting == qty_in for a partial
// limit cross.
func TestQuantityConservationPartialLimit(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitSell(1, 100, 4, 1000))
	require.NoError(t, err)

	fills, err := eng.OnOrder(limitBuy(2, 100, 10, 2000))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, common.Quantity(4), fills[0].Qty)

	view := eng.Book(sym)
	require.Len(t, view.Bids, 1)
	assert.Equal(t, common.Quantity(6), view.Bids[0].Qty) // 10 - 4 resting
}

// Quantity conservation: market remainder beyond available depth is
// discarded, not an error.
func TestQuantityConservationMarketRemainderDiscarded(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitSell(1, 100, 4, 1000))
	require.NoError(t, err)

	fills, err := eng.OnOrder(marketBuy(2, 10, 2000))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, common.Quantity(4), fills[0].Qty)
	assert.Empty(t, eng.Book(sym).Asks)
}

func TestBookNeverCrossedAfterEvents(t *testing.T) {
	eng := engine.New()
	_, err := eng.OnOrder(limitBuy(1, 99, 10, 1000))
	require.NoError(t, err)
	_, err = eng.OnOrder(limitSell(2, 101, 10, 2000))
	require.NoError(t, err)

	view := eng.Book(sym)
	require.Len(t, view.Bids, 1)
	require.Len(t, view.Asks, 1)
	assert.Less(t, view.Bids[0].Price, view.Asks[0].Price)
}
