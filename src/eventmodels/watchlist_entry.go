package eventmodels

import (
	"fmt"
	"strings"
)

type EarningsHour string

const (
	EarningsHourBeforeOpen EarningsHour = "bmo"
	EarningsHourAfterClose EarningsHour = "amc"
)

// WatchlistEntry is one row of the earnings watchlist.
type WatchlistEntry struct {
	Symbol       string `csv:"symbol"`
	Name         string `csv:"name"`
	EarningsDate string `csv:"earningsdate"`
	EarningsHour string `csv:"earningshour"`
	TradeDate    string `csv:"tradedate"`
	Weekday      string `csv:"weekday"`
}

func (h EarningsHour) Describe() string {
	switch h {
	case EarningsHourBeforeOpen:
		return "before open"
	case EarningsHourAfterClose:
		return "after close"
	default:
		return string(h)
	}
}

func (e *WatchlistEntry) GetSymbol() StockSymbol {
	return NewStockSymbol(e.Symbol)
}

func (e *WatchlistEntry) GetEarningsHour() EarningsHour {
	return EarningsHour(strings.ToLower(strings.TrimSpace(e.EarningsHour)))
}

func (e *WatchlistEntry) Validate() error {
	if err := e.GetSymbol().Validate(); err != nil {
		return fmt.Errorf("WatchlistEntry: %w", err)
	}

	return nil
}

type Watchlist []*WatchlistEntry

// FilterByWeekday keeps entries whose weekday matches, case insensitive.
// An empty weekday keeps everything.
func (w Watchlist) FilterByWeekday(weekday string) Watchlist {
	weekday = strings.TrimSpace(weekday)
	if weekday == "" {
		return w
	}

	var out Watchlist
	for _, e := range w {
		if strings.EqualFold(strings.TrimSpace(e.Weekday), weekday) {
			out = append(out, e)
		}
	}

	return out
}

// Symbols returns the distinct symbols in watchlist order.
func (w Watchlist) Symbols() []StockSymbol {
	seen := make(map[StockSymbol]bool)
	var symbols []StockSymbol
	for _, e := range w {
		s := e.GetSymbol()
		if seen[s] {
			continue
		}

		seen[s] = true
		symbols = append(symbols, s)
	}

	return symbols
}
