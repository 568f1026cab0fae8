// Command matchctl is a flag-driven CLI for exercising a running
// matchcored instance: place orders, cancel them, or request a book log,
// then print whatever reports come back.
// Grounded on the teacher's cmd/client/client.go flag/action dispatch,
// re-keyed to the uint64/int64 wire domain.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	netpkg "matchcore/internal/net"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9001", "matchcored order-entry address")
	action := flag.String("action", "", "place | cancel | log")
	sym := flag.Uint64("sym", 1, "symbol id")
	id := flag.Uint64("id", 0, "order id")
	side := flag.String("side", "buy", "buy | sell")
	typ := flag.String("type", "limit", "limit | market")
	price := flag.Int64("price", 0, "limit price (ticks)")
	qty := flag.Uint64("qty", 0, "quantity")
	timeout := flag.Duration("timeout", 2*time.Second, "how long to wait for a report")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("matchctl: dial %s: %v", *addr, err)
	}
	defer conn.Close()

	switch *action {
	case "place":
		sendPlaceOrder(conn, *sym, *id, *side, *typ, *price, *qty)
	case "cancel":
		sendCancelOrder(conn, *sym, *id)
	case "log":
		sendLogBook(conn, *sym)
	default:
		fmt.Fprintln(os.Stderr, "matchctl: -action must be one of: place, cancel, log")
		os.Exit(2)
	}

	readReports(conn, *timeout)
}

func sendPlaceOrder(conn net.Conn, sym, id uint64, side, typ string, price int64, qty uint64) {
	msg := netpkg.NewOrderMessage{
		Sym:   symbolID(sym),
		ID:    orderID(id),
		Side:  parseSide(side),
		Type:  parseType(typ),
		Price: priceOf(price),
		Qty:   quantityOf(qty),
		TS:    timestampOf(),
	}
	if _, err := conn.Write(netpkg.EncodeNewOrder(msg)); err != nil {
		log.Fatalf("matchctl: write new order: %v", err)
	}
}

func sendCancelOrder(conn net.Conn, sym, id uint64) {
	msg := netpkg.CancelOrderMessage{
		Sym: symbolID(sym),
		ID:  orderID(id),
		TS:  timestampOf(),
	}
	if _, err := conn.Write(netpkg.EncodeCancelOrder(msg)); err != nil {
		log.Fatalf("matchctl: write cancel order: %v", err)
	}
}

func sendLogBook(conn net.Conn, sym uint64) {
	if _, err := conn.Write(netpkg.EncodeLogBook(symbolID(sym))); err != nil {
		log.Fatalf("matchctl: write log book: %v", err)
	}
}

// readReports drains execution/error reports until timeout elapses or the
// connection closes, printing each one it decodes.
func readReports(conn net.Conn, timeout time.Duration) {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		var lenBuf [netpkg.LengthPrefixLen]byte
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			if err != io.EOF {
				log.Printf("matchctl: no more reports: %v", err)
			}
			return
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		body := make([]byte, n)
		if _, err := io.ReadFull(conn, body); err != nil {
			log.Printf("matchctl: error reading report body: %v", err)
			return
		}
		report, err := netpkg.DecodeReport(body)
		if err != nil {
			log.Printf("matchctl: error decoding report: %v", err)
			return
		}
		printReport(report)
	}
}

func printReport(r netpkg.Report) {
	switch r.Type {
	case netpkg.ErrorReport:
		fmt.Printf("error: %s\n", r.ErrMsg)
	case netpkg.BookSnapshotReport:
		fmt.Printf("book sym=%d:\n", r.Sym)
		for _, lvl := range r.Bids {
			fmt.Printf("  bid price=%d qty=%d\n", lvl.Price, lvl.Qty)
		}
		for _, lvl := range r.Asks {
			fmt.Printf("  ask price=%d qty=%d\n", lvl.Price, lvl.Qty)
		}
	default:
		f := r.Fill
		fmt.Printf("fill: trade=%d taker=%d maker=%d sym=%d side=%s price=%d qty=%d ts=%d\n",
			f.TradeID, f.TakerID, f.MakerID, f.Sym, f.TakerSide, f.Price, f.Qty, f.TS)
	}
}
