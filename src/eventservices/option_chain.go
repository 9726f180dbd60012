package eventservices

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

type OptionChainRequester interface {
	RequestOptionChain(ctx context.Context, params eventmodels.OptionChainParams) ([]*eventmodels.ContractDTO, error)
}

type OptionChainFetcher struct {
	requester OptionChainRequester
	exchange  string
	now       func() time.Time
}

// FetchChain returns the option contracts on underlying expiring within
// [minDTE, maxDTE] calendar days, inclusive.
func (f *OptionChainFetcher) FetchChain(ctx context.Context, underlying *eventmodels.Contract, minDTE, maxDTE int) (eventmodels.OptionContracts, error) {
	if minDTE < 0 || maxDTE < minDTE {
		return nil, fmt.Errorf("OptionChainFetcher.FetchChain: invalid dte window [%d, %d]", minDTE, maxDTE)
	}

	now := f.now()
	today := eventmodels.DateOnly(now)

	dtos, err := f.requester.RequestOptionChain(ctx, eventmodels.OptionChainParams{
		UnderlyingConID: underlying.ConID,
		Symbol:          underlying.Symbol.String(),
		Exchange:        f.exchange,
		MinExpiry:       today.AddDate(0, 0, minDTE).Format("20060102"),
		MaxExpiry:       today.AddDate(0, 0, maxDTE).Format("20060102"),
	})
	if err != nil {
		return nil, fmt.Errorf("OptionChainFetcher.FetchChain: %w", err)
	}

	var chain eventmodels.OptionContracts
	for _, dto := range dtos {
		option, err := dto.ToOptionContract(underlying)
		if err != nil {
			return nil, fmt.Errorf("OptionChainFetcher.FetchChain: malformed chain for %s: %v: %w", underlying.Symbol, err, eventmodels.NoDataErr)
		}

		dte := option.DaysToExpiry(now)
		if dte < minDTE || dte > maxDTE {
			continue
		}

		chain = append(chain, option)
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("OptionChainFetcher.FetchChain: no options for %s expiring in %d-%d days: %w", underlying.Symbol, minDTE, maxDTE, eventmodels.NoDataErr)
	}

	log.WithField("symbol", underlying.Symbol).Debugf("fetched %d of %d option contracts", len(chain), len(dtos))

	return chain, nil
}

// FetchWeeklyChain returns the contracts of the earliest expiry in the next
// weekly cycle: [d-toleranceDays, d] where d is the number of days to the
// next Friday.
func (f *OptionChainFetcher) FetchWeeklyChain(ctx context.Context, underlying *eventmodels.Contract, toleranceDays int) (eventmodels.OptionContracts, time.Time, error) {
	now := f.now()
	d := eventmodels.DaysBetween(now, eventmodels.DeriveNextFriday(now))

	minDTE := d - toleranceDays
	if minDTE < 0 {
		minDTE = 0
	}

	chain, err := f.FetchChain(ctx, underlying, minDTE, d)
	if err != nil {
		return nil, time.Time{}, err
	}

	expiry := chain.Expirations()[0]
	return chain.ForExpiry(expiry), expiry, nil
}

// StrikeSelection is the at-the-money straddle plus the adjacent strangle legs.
type StrikeSelection struct {
	ATMStrike    decimal.Decimal
	ATMCall      *eventmodels.OptionContract
	ATMPut       *eventmodels.OptionContract
	StrangleCall *eventmodels.OptionContract
	StranglePut  *eventmodels.OptionContract
	Partial      bool
}

// SelectStrikes picks the strike closest to mark, ties going to the lower
// strike. The strangle call sits one strike above and the strangle put one
// strike below; a missing neighbour leaves that leg nil and sets Partial.
func SelectStrikes(chain eventmodels.OptionContracts, mark float64) (*StrikeSelection, error) {
	strikes := chain.Strikes()
	if len(strikes) == 0 {
		return nil, fmt.Errorf("SelectStrikes: empty chain: %w", eventmodels.NoDataErr)
	}

	m := decimal.NewFromFloat(mark)
	atm := 0
	best := strikes[0].Sub(m).Abs()
	for i := 1; i < len(strikes); i++ {
		diff := strikes[i].Sub(m).Abs()
		if diff.LessThan(best) {
			best = diff
			atm = i
		}
	}

	selection := &StrikeSelection{
		ATMStrike: strikes[atm],
		ATMCall:   chain.Find(strikes[atm], eventmodels.OptionRightCall),
		ATMPut:    chain.Find(strikes[atm], eventmodels.OptionRightPut),
	}

	if selection.ATMCall == nil || selection.ATMPut == nil {
		return nil, fmt.Errorf("SelectStrikes: chain lacks a call and put at strike %s: %w", strikes[atm], eventmodels.NoDataErr)
	}

	if atm+1 < len(strikes) {
		selection.StrangleCall = chain.Find(strikes[atm+1], eventmodels.OptionRightCall)
	}

	if atm > 0 {
		selection.StranglePut = chain.Find(strikes[atm-1], eventmodels.OptionRightPut)
	}

	selection.Partial = selection.StrangleCall == nil || selection.StranglePut == nil

	return selection, nil
}

// WeekdayExpiries drops contracts expiring on a weekend.
func WeekdayExpiries(chain eventmodels.OptionContracts) eventmodels.OptionContracts {
	var out eventmodels.OptionContracts
	for _, c := range chain {
		wd := c.Expiry.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}

		out = append(out, c)
	}

	return out
}

func NewOptionChainFetcher(requester OptionChainRequester, exchange string, now func() time.Time) *OptionChainFetcher {
	if exchange == "" {
		exchange = "SMART"
	}

	if now == nil {
		now = time.Now
	}

	return &OptionChainFetcher{
		requester: requester,
		exchange:  exchange,
		now:       now,
	}
}
