package book

import (
	"container/list"

	"matchcore/internal/common"
)

// RestingOrder is a live limit order sitting in a PriceLevel's FIFO.
// Destroyed on full fill or cancel (spec.md §3, Resting Order lifecycle).
type RestingOrder struct {
	ID            common.OrderID
	Sym           common.SymbolID
	Side          common.Side
	Price         common.Price
	RemainingQty  common.Quantity
	ArrivalTS     common.Timestamp
	ArrivalSeq    uint64
}

// PriceLevel is a FIFO of resting orders at one price on one side of one
// symbol, plus the aggregate remaining quantity (spec.md §4.1).
//
// Orders is a container/list.List of *RestingOrder: the idiomatic-Go
// analogue of the original header's intrusive OrderNode{next, prev} — it
// gives O(1) append, O(1) head inspection, and O(1) removal of an
// arbitrary element given its *list.Element, without hand-rolled pointer
// plumbing.
type PriceLevel struct {
	Side     common.Side
	Price    common.Price
	Orders   *list.List
	totalQty common.Quantity
}

func newPriceLevel(side common.Side, price common.Price) *PriceLevel {
	return &PriceLevel{
		Side:   side,
		Price:  price,
		Orders: list.New(),
	}
}

// TotalQty returns the aggregate remaining quantity of all orders resting
// at this level. Invariant: TotalQty() == 0 iff IsEmpty().
func (l *PriceLevel) TotalQty() common.Quantity { return l.totalQty }

// IsEmpty reports whether the level's FIFO holds any resting orders.
func (l *PriceLevel) IsEmpty() bool { return l.Orders.Len() == 0 }

// append pushes a resting order to the tail of the FIFO and returns the
// list element backing it, for O(1) later removal.
func (l *PriceLevel) append(o *RestingOrder) *list.Element {
	elem := l.Orders.PushBack(o)
	l.totalQty += o.RemainingQty
	return elem
}

// Head inspects the oldest resting order without removing it — the level's
// next maker in price-time priority (spec.md §4.1). Returns nil if the
// level is empty.
func (l *PriceLevel) Head() *RestingOrder {
	front := l.Orders.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*RestingOrder)
}

// consumeHead reduces the head order's remaining quantity by q (q must be
// <= head.RemainingQty). If the head becomes fully consumed it is popped
// and its id is returned so the caller can drop the id index entry.
func (l *PriceLevel) consumeHead(q common.Quantity) (drained common.OrderID, wasDrained bool) {
	head := l.Head()
	head.RemainingQty -= q
	l.totalQty -= q
	if head.RemainingQty == 0 {
		l.Orders.Remove(l.Orders.Front())
		return head.ID, true
	}
	return 0, false
}

// remove unlinks a specific order anywhere in the FIFO given its backing
// element, decrementing total quantity.
func (l *PriceLevel) remove(elem *list.Element) {
	o := elem.Value.(*RestingOrder)
	l.totalQty -= o.RemainingQty
	l.Orders.Remove(elem)
}
