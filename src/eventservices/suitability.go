package eventservices

import (
	"fmt"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

const (
	ReasonTooCheap              = "too cheap"
	ReasonSpreadTooWide         = "spread too wide"
	ReasonInsufficientLiquidity = "insufficient liquidity"
)

// ChainData is the option side of a candidate seen by the suitability predicates.
type ChainData struct {
	ATMCall *eventmodels.OptionLeg
	ATMPut  *eventmodels.OptionLeg
}

func (d ChainData) legs() []*eventmodels.OptionLeg {
	var legs []*eventmodels.OptionLeg
	for _, leg := range []*eventmodels.OptionLeg{d.ATMCall, d.ATMPut} {
		if leg != nil && leg.Quote != nil && !leg.Quote.Stale {
			legs = append(legs, leg)
		}
	}

	return legs
}

type suitabilityPredicate struct {
	name       string
	needsChain bool
	check      func(quote *eventmodels.Quote, chain ChainData) (rejection string, err error)
}

// SuitabilityFilter applies its predicates in order; the first failure names
// the rejection.
type SuitabilityFilter struct {
	cfg        eventmodels.SuitabilityConfig
	predicates []suitabilityPredicate
}

func (f *SuitabilityFilter) minPrice(quote *eventmodels.Quote, chain ChainData) (string, error) {
	price, ok := quote.ReferencePrice()
	if !ok {
		return "", fmt.Errorf("no reference price for %s: %w", quote.Key, eventmodels.NoDataErr)
	}

	if price < f.cfg.MinPrice {
		return ReasonTooCheap, nil
	}

	return "", nil
}

func (f *SuitabilityFilter) maxSpread(quote *eventmodels.Quote, chain ChainData) (string, error) {
	if f.cfg.MaxSpreadPercent <= 0 || quote.Stale {
		return "", nil
	}

	for _, leg := range chain.legs() {
		if spread, ok := leg.Quote.SpreadPercent(); ok && spread > f.cfg.MaxSpreadPercent {
			return ReasonSpreadTooWide, nil
		}
	}

	return "", nil
}

func (f *SuitabilityFilter) minOptionSize(quote *eventmodels.Quote, chain ChainData) (string, error) {
	if f.cfg.MinOptionSize <= 0 || quote.Stale {
		return "", nil
	}

	for _, leg := range chain.legs() {
		if size, ok := leg.Quote.MinQuotedSize(); ok && size < f.cfg.MinOptionSize {
			return ReasonInsufficientLiquidity, nil
		}
	}

	return "", nil
}

// Evaluate has no side effects.
func (f *SuitabilityFilter) Evaluate(symbol eventmodels.StockSymbol, quote *eventmodels.Quote, chain ChainData) eventmodels.Verdict {
	return f.evaluate(symbol, quote, chain, true)
}

// EvaluatePrice applies only the predicates that need nothing but the
// underlying quote.
func (f *SuitabilityFilter) EvaluatePrice(symbol eventmodels.StockSymbol, quote *eventmodels.Quote) eventmodels.Verdict {
	return f.evaluate(symbol, quote, ChainData{}, false)
}

func (f *SuitabilityFilter) evaluate(symbol eventmodels.StockSymbol, quote *eventmodels.Quote, chain ChainData, withChain bool) eventmodels.Verdict {
	if quote == nil {
		return eventmodels.NewErrorVerdict(fmt.Errorf("SuitabilityFilter: no quote for %s: %w", symbol, eventmodels.NoDataErr))
	}

	for _, p := range f.predicates {
		if p.needsChain && !withChain {
			continue
		}

		rejection, err := p.check(quote, chain)
		if err != nil {
			return eventmodels.NewErrorVerdict(fmt.Errorf("SuitabilityFilter: %s: %w", p.name, err))
		}

		if rejection != "" {
			return eventmodels.NewRejectedVerdict(rejection)
		}
	}

	return eventmodels.NewAcceptedVerdict()
}

func NewSuitabilityFilter(cfg eventmodels.SuitabilityConfig) *SuitabilityFilter {
	f := &SuitabilityFilter{cfg: cfg}
	f.predicates = []suitabilityPredicate{
		{name: "min_price", check: f.minPrice},
		{name: "max_spread", needsChain: true, check: f.maxSpread},
		{name: "min_option_size", needsChain: true, check: f.minOptionSize},
	}

	return f
}
