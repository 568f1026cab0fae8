package main

import (
	"log"
	"strings"
	"time"

	"matchcore/internal/common"
)

func symbolID(v uint64) common.SymbolID     { return common.SymbolID(v) }
func orderID(v uint64) common.OrderID       { return common.OrderID(v) }
func priceOf(v int64) common.Price          { return common.Price(v) }
func quantityOf(v uint64) common.Quantity   { return common.Quantity(v) }
func timestampOf() common.Timestamp         { return common.Timestamp(time.Now().UnixMilli()) }

func parseSide(s string) common.Side {
	switch strings.ToLower(s) {
	case "buy":
		return common.Buy
	case "sell":
		return common.Sell
	default:
		log.Fatalf("matchctl: -side must be buy or sell, got %q", s)
		return common.Buy
	}
}

func parseType(s string) common.OrderType {
	switch strings.ToLower(s) {
	case "limit":
		return common.Limit
	case "market":
		return common.Market
	default:
		log.Fatalf("matchctl: -type must be limit or market, got %q", s)
		return common.Limit
	}
}
