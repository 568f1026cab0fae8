// Wire framing: every message is a 4-byte big-endian length prefix (of
// everything that follows) plus a 1-byte type tag plus a body. Request and
// execution-report bodies are fixed-width; error and book-snapshot report
// bodies are count-prefixed and variable-length.
// Re-keyed from the teacher's internal/net/messages.go (same big-endian
// fixed-header style) to spec.md §3's integer domain: no floats, no UUID
// order identity.
package net

import (
	"encoding/binary"
	"errors"

	"matchcore/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("matchcore/net: invalid message type")
	ErrMessageTooShort     = errors.New("matchcore/net: message shorter than its declared body")
)

type MessageType uint8

const (
	NewOrder MessageType = iota
	CancelOrder
	LogBook
)

type ReportType uint8

const (
	ExecutionReport ReportType = iota
	ErrorReport
	BookSnapshotReport
)

// Fixed body lengths, header (length prefix + type byte) excluded.
const (
	LengthPrefixLen = 4
	TypeByteLen     = 1
	NewOrderBodyLen = 8 + 8 + 1 + 1 + 8 + 8 + 8 // sym, id, side, type, price, qty, ts
	CancelBodyLen   = 8 + 8 + 8                 // sym, id, ts
	LogBookBodyLen  = 8                         // sym
	ExecReportLen   = 8 + 8 + 8 + 8 + 1 + 8 + 8 + 8
	errReportMinLen = 2 // uint16 message length prefix
	bookLevelLen    = 8 + 8 // price, qty
	bookReportMinLen = 8 + 2 + 2 // sym, bid count, ask count
)

// Message is anything parseNewOrder/parseCancelOrder can produce.
type Message interface {
	GetType() MessageType
}

type NewOrderMessage struct {
	Sym   common.SymbolID
	ID    common.OrderID
	Side  common.Side
	Type  common.OrderType
	Price common.Price
	Qty   common.Quantity
	TS    common.Timestamp
}

func (NewOrderMessage) GetType() MessageType { return NewOrder }

// Request converts the wire message into the engine's OrderRequest.
func (m NewOrderMessage) Request() common.OrderRequest {
	return common.OrderRequest{
		ID:    m.ID,
		Sym:   m.Sym,
		Side:  m.Side,
		Type:  m.Type,
		Price: m.Price,
		Qty:   m.Qty,
		TS:    m.TS,
	}
}

type CancelOrderMessage struct {
	Sym common.SymbolID
	ID  common.OrderID
	TS  common.Timestamp
}

func (CancelOrderMessage) GetType() MessageType { return CancelOrder }

func (m CancelOrderMessage) Request() common.CancelRequest {
	return common.CancelRequest{ID: m.ID, Sym: m.Sym, TS: m.TS}
}

// LogBookMessage is the admin command requesting a snapshot of one
// symbol's book, answered with a BookSnapshotReport.
type LogBookMessage struct {
	Sym common.SymbolID
}

func (LogBookMessage) GetType() MessageType { return LogBook }

// EncodeNewOrder serializes a NewOrderMessage body, including its 4-byte
// length prefix and type byte, ready to write to a connection.
func EncodeNewOrder(m NewOrderMessage) []byte {
	buf := make([]byte, LengthPrefixLen+TypeByteLen+NewOrderBodyLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(TypeByteLen+NewOrderBodyLen))
	buf[4] = byte(NewOrder)
	body := buf[5:]
	binary.BigEndian.PutUint64(body[0:8], uint64(m.Sym))
	binary.BigEndian.PutUint64(body[8:16], uint64(m.ID))
	body[16] = byte(m.Side)
	body[17] = byte(m.Type)
	binary.BigEndian.PutUint64(body[18:26], uint64(m.Price))
	binary.BigEndian.PutUint64(body[26:34], uint64(m.Qty))
	binary.BigEndian.PutUint64(body[34:42], uint64(m.TS))
	return buf
}

// EncodeCancelOrder mirrors EncodeNewOrder for cancel requests.
func EncodeCancelOrder(m CancelOrderMessage) []byte {
	buf := make([]byte, LengthPrefixLen+TypeByteLen+CancelBodyLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(TypeByteLen+CancelBodyLen))
	buf[4] = byte(CancelOrder)
	body := buf[5:]
	binary.BigEndian.PutUint64(body[0:8], uint64(m.Sym))
	binary.BigEndian.PutUint64(body[8:16], uint64(m.ID))
	binary.BigEndian.PutUint64(body[16:24], uint64(m.TS))
	return buf
}

// EncodeLogBook serializes a request for sym's current book snapshot.
func EncodeLogBook(sym common.SymbolID) []byte {
	buf := make([]byte, LengthPrefixLen+TypeByteLen+LogBookBodyLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(TypeByteLen+LogBookBodyLen))
	buf[4] = byte(LogBook)
	binary.BigEndian.PutUint64(buf[5:13], uint64(sym))
	return buf
}

// ParseMessage decodes a frame body (type byte + payload, length prefix
// already stripped by the caller) into a concrete Message.
func ParseMessage(frame []byte) (Message, error) {
	if len(frame) < TypeByteLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(frame[0])
	body := frame[1:]
	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case LogBook:
		return parseLogBook(body)
	default:
		return nil, ErrInvalidMessageType
	}
}

func parseNewOrder(body []byte) (NewOrderMessage, error) {
	if len(body) < NewOrderBodyLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	return NewOrderMessage{
		Sym:   common.SymbolID(binary.BigEndian.Uint64(body[0:8])),
		ID:    common.OrderID(binary.BigEndian.Uint64(body[8:16])),
		Side:  common.Side(body[16]),
		Type:  common.OrderType(body[17]),
		Price: common.Price(binary.BigEndian.Uint64(body[18:26])),
		Qty:   common.Quantity(binary.BigEndian.Uint64(body[26:34])),
		TS:    common.Timestamp(binary.BigEndian.Uint64(body[34:42])),
	}, nil
}

func parseLogBook(body []byte) (LogBookMessage, error) {
	if len(body) < LogBookBodyLen {
		return LogBookMessage{}, ErrMessageTooShort
	}
	return LogBookMessage{Sym: common.SymbolID(binary.BigEndian.Uint64(body[0:8]))}, nil
}

func parseCancelOrder(body []byte) (CancelOrderMessage, error) {
	if len(body) < CancelBodyLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	return CancelOrderMessage{
		Sym: common.SymbolID(binary.BigEndian.Uint64(body[0:8])),
		ID:  common.OrderID(binary.BigEndian.Uint64(body[8:16])),
		TS:  common.Timestamp(binary.BigEndian.Uint64(body[16:24])),
	}, nil
}

// BookLevel is one (price, total quantity) point of a book snapshot, the
// wire counterpart of book.LevelView — kept separate so this package
// doesn't need to import internal/book for a two-field shape.
type BookLevel struct {
	Price common.Price
	Qty   common.Quantity
}

// Report is the outbound wire representation of a Fill (ExecutionReport),
// a rejected request (ErrorReport), or a book snapshot (BookSnapshotReport).
type Report struct {
	Type   ReportType
	Fill   common.Fill // valid when Type == ExecutionReport
	ErrMsg string      // valid when Type == ErrorReport

	// Valid when Type == BookSnapshotReport. Bids/Asks are already
	// best-first, matching book.Book.Levels.
	Sym  common.SymbolID
	Bids []BookLevel
	Asks []BookLevel
}

// Encode serializes a Report with its length prefix and type byte.
func (r Report) Encode() []byte {
	switch r.Type {
	case ErrorReport:
		return r.encodeError()
	case BookSnapshotReport:
		return r.encodeBookSnapshot()
	default:
		return r.encodeExecution()
	}
}

func (r Report) encodeExecution() []byte {
	buf := make([]byte, LengthPrefixLen+TypeByteLen+ExecReportLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(TypeByteLen+ExecReportLen))
	buf[4] = byte(ExecutionReport)
	body := buf[5:]
	f := r.Fill
	binary.BigEndian.PutUint64(body[0:8], uint64(f.TradeID))
	binary.BigEndian.PutUint64(body[8:16], uint64(f.TakerID))
	binary.BigEndian.PutUint64(body[16:24], uint64(f.MakerID))
	binary.BigEndian.PutUint64(body[24:32], uint64(f.Sym))
	body[32] = byte(f.TakerSide)
	binary.BigEndian.PutUint64(body[33:41], uint64(f.Price))
	binary.BigEndian.PutUint64(body[41:49], uint64(f.Qty))
	binary.BigEndian.PutUint64(body[49:57], uint64(f.TS))
	return buf
}

func (r Report) encodeError() []byte {
	msg := []byte(r.ErrMsg)
	bodyLen := errReportMinLen + len(msg)
	buf := make([]byte, LengthPrefixLen+TypeByteLen+bodyLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(TypeByteLen+bodyLen))
	buf[4] = byte(ErrorReport)
	body := buf[5:]
	binary.BigEndian.PutUint16(body[0:2], uint16(len(msg)))
	copy(body[2:], msg)
	return buf
}

func (r Report) encodeBookSnapshot() []byte {
	bodyLen := bookReportMinLen + (len(r.Bids)+len(r.Asks))*bookLevelLen
	buf := make([]byte, LengthPrefixLen+TypeByteLen+bodyLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(TypeByteLen+bodyLen))
	buf[4] = byte(BookSnapshotReport)
	body := buf[5:]
	binary.BigEndian.PutUint64(body[0:8], uint64(r.Sym))
	binary.BigEndian.PutUint16(body[8:10], uint16(len(r.Bids)))
	off := 10
	for _, lvl := range r.Bids {
		binary.BigEndian.PutUint64(body[off:off+8], uint64(lvl.Price))
		binary.BigEndian.PutUint64(body[off+8:off+16], uint64(lvl.Qty))
		off += bookLevelLen
	}
	binary.BigEndian.PutUint16(body[off:off+2], uint16(len(r.Asks)))
	off += 2
	for _, lvl := range r.Asks {
		binary.BigEndian.PutUint64(body[off:off+8], uint64(lvl.Price))
		binary.BigEndian.PutUint64(body[off+8:off+16], uint64(lvl.Qty))
		off += bookLevelLen
	}
	return buf
}

// DecodeReport is the client-side counterpart, used by cmd/matchctl.
func DecodeReport(frame []byte) (Report, error) {
	if len(frame) < TypeByteLen {
		return Report{}, ErrMessageTooShort
	}
	typeOf := ReportType(frame[0])
	body := frame[1:]
	switch typeOf {
	case ExecutionReport:
		if len(body) < ExecReportLen {
			return Report{}, ErrMessageTooShort
		}
		return Report{
			Type: ExecutionReport,
			Fill: common.Fill{
				TradeID:   common.TradeID(binary.BigEndian.Uint64(body[0:8])),
				TakerID:   common.OrderID(binary.BigEndian.Uint64(body[8:16])),
				MakerID:   common.OrderID(binary.BigEndian.Uint64(body[16:24])),
				Sym:       common.SymbolID(binary.BigEndian.Uint64(body[24:32])),
				TakerSide: common.Side(body[32]),
				Price:     common.Price(binary.BigEndian.Uint64(body[33:41])),
				Qty:       common.Quantity(binary.BigEndian.Uint64(body[41:49])),
				TS:        common.Timestamp(binary.BigEndian.Uint64(body[49:57])),
			},
		}, nil
	case ErrorReport:
		if len(body) < errReportMinLen {
			return Report{}, ErrMessageTooShort
		}
		n := binary.BigEndian.Uint16(body[0:2])
		if len(body) < errReportMinLen+int(n) {
			return Report{}, ErrMessageTooShort
		}
		return Report{Type: ErrorReport, ErrMsg: string(body[2 : 2+n])}, nil
	case BookSnapshotReport:
		return decodeBookSnapshot(body)
	default:
		return Report{}, ErrInvalidMessageType
	}
}

func decodeBookSnapshot(body []byte) (Report, error) {
	if len(body) < bookReportMinLen {
		return Report{}, ErrMessageTooShort
	}
	sym := common.SymbolID(binary.BigEndian.Uint64(body[0:8]))
	off := 8

	bidCount := int(binary.BigEndian.Uint16(body[off : off+2]))
	off += 2
	bids, off, err := decodeBookLevels(body, off, bidCount)
	if err != nil {
		return Report{}, err
	}

	if len(body) < off+2 {
		return Report{}, ErrMessageTooShort
	}
	askCount := int(binary.BigEndian.Uint16(body[off : off+2]))
	off += 2
	asks, _, err := decodeBookLevels(body, off, askCount)
	if err != nil {
		return Report{}, err
	}

	return Report{Type: BookSnapshotReport, Sym: sym, Bids: bids, Asks: asks}, nil
}

func decodeBookLevels(body []byte, off, count int) ([]BookLevel, int, error) {
	if len(body) < off+count*bookLevelLen {
		return nil, 0, ErrMessageTooShort
	}
	levels := make([]BookLevel, count)
	for i := range levels {
		levels[i] = BookLevel{
			Price: common.Price(binary.BigEndian.Uint64(body[off : off+8])),
			Qty:   common.Quantity(binary.BigEndian.Uint64(body[off+8 : off+16])),
		}
		off += bookLevelLen
	}
	return levels, off, nil
}
