package eventmodels

import (
	"fmt"
	"strings"
	"time"
)

type QuoteField string

const (
	QuoteFieldLast             QuoteField = "LAST"
	QuoteFieldBid              QuoteField = "BID"
	QuoteFieldAsk              QuoteField = "ASK"
	QuoteFieldMark             QuoteField = "MARK_PRICE"
	QuoteFieldLastSize         QuoteField = "LAST_SIZE"
	QuoteFieldBidSize          QuoteField = "BID_SIZE"
	QuoteFieldAskSize          QuoteField = "ASK_SIZE"
	QuoteFieldCallOpenInterest QuoteField = "OPTION_CALL_OPEN_INTEREST"
	QuoteFieldPutOpenInterest  QuoteField = "OPTION_PUT_OPEN_INTEREST"
)

type OptionComputation struct {
	ImpliedVolatility float64
	Delta             float64
	Gamma             float64
	Vega              float64
	Theta             float64
}

// Quote is a top of book capture for one contract. Stale is true when the
// quote came from a snapshot request instead of a live stream.
type Quote struct {
	ConID            int64
	Key              string
	SecType          SecurityType
	Last             *float64
	Bid              *float64
	Ask              *float64
	Mark             *float64
	LastSize         *float64
	BidSize          *float64
	AskSize          *float64
	CallOpenInterest *float64
	PutOpenInterest  *float64
	Computation      *OptionComputation
	CapturedAt       time.Time
	Stale            bool
}

func NewQuote(contract *Contract, stale bool) *Quote {
	return &Quote{
		ConID:   contract.ConID,
		Key:     contract.Key(),
		SecType: contract.SecType,
		Stale:   stale,
	}
}

func validPrice(p *float64) bool {
	// the gateway sends -1 for "no value"
	return p != nil && *p > 0
}

func float64Ptr(v float64) *float64 {
	return &v
}

func (q *Quote) ApplyTick(field QuoteField, value float64, at time.Time) {
	switch field {
	case QuoteFieldLast:
		q.Last = float64Ptr(value)
	case QuoteFieldBid:
		q.Bid = float64Ptr(value)
	case QuoteFieldAsk:
		q.Ask = float64Ptr(value)
	case QuoteFieldMark:
		q.Mark = float64Ptr(value)
	case QuoteFieldLastSize:
		q.LastSize = float64Ptr(value)
	case QuoteFieldBidSize:
		q.BidSize = float64Ptr(value)
	case QuoteFieldAskSize:
		q.AskSize = float64Ptr(value)
	case QuoteFieldCallOpenInterest:
		q.CallOpenInterest = float64Ptr(value)
	case QuoteFieldPutOpenInterest:
		q.PutOpenInterest = float64Ptr(value)
	default:
		return
	}

	q.CapturedAt = at
}

func (q *Quote) ApplyComputation(c OptionComputation, at time.Time) {
	q.Computation = &c
	q.CapturedAt = at
}

// IsComplete reports whether enough fields arrived: a mark price for
// snapshots, bid, ask and last for live streams.
func (q *Quote) IsComplete() bool {
	if q.Stale {
		return validPrice(q.Mark)
	}

	return validPrice(q.Bid) && validPrice(q.Ask) && validPrice(q.Last)
}

// Price is the option valuation price: mark, then the bid/ask midpoint, then last.
func (q *Quote) Price() (float64, bool) {
	if validPrice(q.Mark) {
		return *q.Mark, true
	}

	if validPrice(q.Bid) && validPrice(q.Ask) {
		return (*q.Bid + *q.Ask) / 2, true
	}

	if validPrice(q.Last) {
		return *q.Last, true
	}

	return 0, false
}

// ReferencePrice is the underlying price used for screening: mark, then last,
// then the midpoint.
func (q *Quote) ReferencePrice() (float64, bool) {
	if validPrice(q.Mark) {
		return *q.Mark, true
	}

	if validPrice(q.Last) {
		return *q.Last, true
	}

	return q.Price()
}

// SpreadPercent is (ask-bid)/mid*100.
func (q *Quote) SpreadPercent() (float64, bool) {
	if !validPrice(q.Bid) || !validPrice(q.Ask) {
		return 0, false
	}

	mid := (*q.Bid + *q.Ask) / 2
	return (*q.Ask - *q.Bid) / mid * 100, true
}

// MinQuotedSize is min(bid size, ask size).
func (q *Quote) MinQuotedSize() (float64, bool) {
	if q.BidSize == nil || q.AskSize == nil {
		return 0, false
	}

	if *q.BidSize < *q.AskSize {
		return *q.BidSize, true
	}

	return *q.AskSize, true
}

func (q *Quote) String() string {
	var parts []string
	add := func(name string, v *float64) {
		if v != nil {
			parts = append(parts, fmt.Sprintf("%s=%v", name, *v))
		}
	}

	add(string(QuoteFieldLast), q.Last)
	add(string(QuoteFieldBid), q.Bid)
	add(string(QuoteFieldAsk), q.Ask)
	add(string(QuoteFieldMark), q.Mark)
	add(string(QuoteFieldLastSize), q.LastSize)
	add(string(QuoteFieldBidSize), q.BidSize)
	add(string(QuoteFieldAskSize), q.AskSize)

	if len(parts) == 0 {
		return "no data"
	}

	return strings.Join(parts, ", ")
}
