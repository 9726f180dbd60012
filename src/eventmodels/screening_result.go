package eventmodels

import (
	"fmt"
	"time"
)

type ScreeningState string

const (
	ScreeningStateResolving     ScreeningState = "resolving"
	ScreeningStateChainFetching ScreeningState = "chain_fetching"
	ScreeningStateQuoteFetching ScreeningState = "quote_fetching"
	ScreeningStateFiltering     ScreeningState = "filtering"
	ScreeningStateAnalyzing     ScreeningState = "analyzing"
	ScreeningStateDone          ScreeningState = "done"
)

type VerdictKind string

const (
	VerdictAccepted VerdictKind = "accepted"
	VerdictRejected VerdictKind = "rejected"
	VerdictError    VerdictKind = "error"
)

type Verdict struct {
	Kind   VerdictKind
	Reason string
	Err    error
}

func NewAcceptedVerdict() Verdict {
	return Verdict{Kind: VerdictAccepted}
}

func NewRejectedVerdict(reason string) Verdict {
	return Verdict{Kind: VerdictRejected, Reason: reason}
}

func NewErrorVerdict(err error) Verdict {
	return Verdict{Kind: VerdictError, Reason: err.Error(), Err: err}
}

func (v Verdict) String() string {
	if v.Kind == VerdictAccepted {
		return string(v.Kind)
	}

	return fmt.Sprintf("%s: %s", v.Kind, v.Reason)
}

// OptionLeg is a selected option contract with the quote captured for it.
type OptionLeg struct {
	Contract *OptionContract
	Quote    *Quote
}

// Price returns the leg's option price, or false when no usable quote exists.
func (l *OptionLeg) Price() (float64, bool) {
	if l == nil || l.Quote == nil {
		return 0, false
	}

	return l.Quote.Price()
}

// VolatilityAnalysis is the output of the historical move analysis.
type VolatilityAnalysis struct {
	Moves              []MoveRecord
	AveragePercentMove float64
	HistoricalRange    PriceRange
	ExpectedMove       float64
	ExpectedRange      PriceRange
	StrangleBoundaries PriceRange
}

type ScreeningResult struct {
	Symbol          StockSymbol
	Entry           *WatchlistEntry
	Underlying      *Contract
	UnderlyingQuote *Quote
	Mark            float64
	ChainSize       int
	Expiry          time.Time
	ATMCall         *OptionLeg
	ATMPut          *OptionLeg
	StrangleCall    *OptionLeg
	StranglePut     *OptionLeg
	Partial         bool
	Analysis        *VolatilityAnalysis
	State           ScreeningState
	Verdict         Verdict
}

// ScreeningResultCSV is the flattened export row of a ScreeningResult.
type ScreeningResultCSV struct {
	Symbol             string `csv:"symbol"`
	Verdict            string `csv:"verdict"`
	Reason             string `csv:"reason"`
	Mark               string `csv:"mark"`
	Expiry             string `csv:"expiry"`
	ChainSize          int    `csv:"chain_size"`
	ATMStrike          string `csv:"atm_strike"`
	StrangleCallStrike string `csv:"strangle_call_strike"`
	StranglePutStrike  string `csv:"strangle_put_strike"`
	AveragePercentMove string `csv:"avg_percent_move"`
	ExpectedMove       string `csv:"expected_move"`
	StrangleLow        string `csv:"strangle_low"`
	StrangleHigh       string `csv:"strangle_high"`
}

func formatOptionalFloat(v float64, ok bool) string {
	if !ok {
		return ""
	}

	return fmt.Sprintf("%.2f", v)
}

func legStrike(leg *OptionLeg) string {
	if leg == nil || leg.Contract == nil {
		return ""
	}

	return leg.Contract.Strike.String()
}

func (r *ScreeningResult) ToCSV() *ScreeningResultCSV {
	row := &ScreeningResultCSV{
		Symbol:             r.Symbol.String(),
		Verdict:            string(r.Verdict.Kind),
		Reason:             r.Verdict.Reason,
		Mark:               formatOptionalFloat(r.Mark, r.Mark > 0),
		ChainSize:          r.ChainSize,
		ATMStrike:          legStrike(r.ATMCall),
		StrangleCallStrike: legStrike(r.StrangleCall),
		StranglePutStrike:  legStrike(r.StranglePut),
	}

	if !r.Expiry.IsZero() {
		row.Expiry = r.Expiry.Format("2006-01-02")
	}

	if r.Analysis != nil {
		row.AveragePercentMove = formatOptionalFloat(r.Analysis.AveragePercentMove, true)
		row.ExpectedMove = formatOptionalFloat(r.Analysis.ExpectedMove, true)
		row.StrangleLow = formatOptionalFloat(r.Analysis.StrangleBoundaries.Low, true)
		row.StrangleHigh = formatOptionalFloat(r.Analysis.StrangleBoundaries.High, true)
	}

	return row
}
