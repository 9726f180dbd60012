package run

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jiaming2012/options-screener/src/eventmodels"
	"github.com/jiaming2012/options-screener/src/eventpubsub"
	"github.com/jiaming2012/options-screener/src/eventservices"
	"github.com/jiaming2012/options-screener/src/worker"
)

type RunArgs struct {
	Symbol         string
	MinDTE         int
	MaxDTE         int
	Paper          bool
	NoTradingHours bool
}

type Straddle struct {
	Expiry time.Time
	Call   *eventmodels.OptionLeg
	Put    *eventmodels.OptionLeg
}

func (s *Straddle) Price() (float64, bool) {
	call, callOK := s.Call.Price()
	put, putOK := s.Put.Price()
	return call + put, callOK && putOK
}

type RunResult struct {
	Underlying *eventmodels.Contract
	Mark       float64
	Chain      eventmodels.OptionContracts
	Straddle   *Straddle
}

// PrintChain writes one table per expiry with the call and put at each strike.
func PrintChain(out io.Writer, result RunResult) {
	p := message.NewPrinter(language.English)

	if result.Mark > 0 {
		fmt.Fprintf(out, "%s mark: $%s\n", result.Underlying.Symbol, p.Sprintf("%.2f", result.Mark))
	}

	for _, expiry := range result.Chain.Expirations() {
		contracts := result.Chain.ForExpiry(expiry)
		fmt.Fprintf(out, "Expiry %s (%s), %d contracts\n", expiry.Format("2006-01-02"), expiry.Weekday(), len(contracts))

		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Strike", "Call", "Put"})
		table.SetAlignment(tablewriter.ALIGN_RIGHT)
		table.SetAutoWrapText(false)

		for _, strike := range contracts.Strikes() {
			row := []string{strike.StringFixed(2), "", ""}
			if c := contracts.Find(strike, eventmodels.OptionRightCall); c != nil {
				row[1] = c.LocalSymbol
			}

			if c := contracts.Find(strike, eventmodels.OptionRightPut); c != nil {
				row[2] = c.LocalSymbol
			}

			table.Append(row)
		}

		table.Render()
	}

	if s := result.Straddle; s != nil {
		if price, ok := s.Price(); ok {
			fmt.Fprintf(out, "ATM straddle %s %s: $%s\n", s.Expiry.Format("2006-01-02"), s.Call.Contract.Strike.String(), p.Sprintf("%.2f", price))
		}
	}
}

func fetchStraddle(ctx context.Context, quotes *eventservices.MarketDataSnapshot, chain eventmodels.OptionContracts, mark float64, liveHours bool) (*Straddle, error) {
	expiry := chain.Expirations()[0]

	selection, err := eventservices.SelectStrikes(chain.ForExpiry(expiry), mark)
	if err != nil {
		return nil, err
	}

	straddle := &Straddle{Expiry: expiry}
	for _, leg := range []struct {
		contract *eventmodels.OptionContract
		out      **eventmodels.OptionLeg
	}{
		{selection.ATMCall, &straddle.Call},
		{selection.ATMPut, &straddle.Put},
	} {
		quote, err := quotes.OptionQuote(ctx, leg.contract, liveHours)
		if err != nil {
			return nil, err
		}

		*leg.out = &eventmodels.OptionLeg{Contract: leg.contract, Quote: quote}
	}

	return straddle, nil
}

// Run fetches the weekday expiries of the chain inside the DTE window and,
// when the underlying can be quoted, the nearest ATM straddle.
func Run(ctx context.Context, cfg *eventmodels.ScreenerConfig, args RunArgs) (RunResult, error) {
	symbol := eventmodels.NewStockSymbol(args.Symbol)
	if err := symbol.Validate(); err != nil {
		return RunResult{}, fmt.Errorf("Run: %w", err)
	}

	bus := eventpubsub.NewBus()
	session := eventservices.NewGatewaySession(cfg.Gateway, worker.NewIBGatewayTransport(cfg.GatewayURL(args.Paper), bus), bus)

	if err := session.Connect(ctx); err != nil {
		return RunResult{}, fmt.Errorf("Run: %w", err)
	}

	defer session.Disconnect()

	underlying, err := eventservices.NewContractResolver(session).Resolve(ctx, symbol)
	if err != nil {
		return RunResult{}, fmt.Errorf("Run: %w", err)
	}

	chain, err := eventservices.NewOptionChainFetcher(session, cfg.Chain.Exchange, time.Now).FetchChain(ctx, underlying, args.MinDTE, args.MaxDTE)
	if err != nil {
		return RunResult{}, fmt.Errorf("Run: %w", err)
	}

	result := RunResult{Underlying: underlying, Chain: eventservices.WeekdayExpiries(chain)}
	if len(result.Chain) == 0 {
		return result, fmt.Errorf("Run: only weekend expiries for %s: %w", symbol, eventmodels.NoDataErr)
	}

	liveHours := !args.NoTradingHours && eventmodels.IsRegularTradingHours(time.Now())
	quotes := eventservices.NewMarketDataSnapshot(session)

	quote, err := quotes.Quote(ctx, underlying, liveHours)
	if err != nil {
		if eventservices.IsFatal(err) || ctx.Err() != nil {
			return result, fmt.Errorf("Run: %w", err)
		}

		log.Warnf("no quote for %s, skipping the straddle: %v", symbol, err)
		return result, nil
	}

	mark, ok := quote.ReferencePrice()
	if !ok {
		log.Warnf("no price for %s, skipping the straddle", symbol)
		return result, nil
	}

	result.Mark = mark

	if result.Straddle, err = fetchStraddle(ctx, quotes, result.Chain, mark, liveHours); err != nil {
		if eventservices.IsFatal(err) || ctx.Err() != nil {
			return result, fmt.Errorf("Run: %w", err)
		}

		log.Warnf("failed to quote the ATM straddle for %s: %v", symbol, err)
	}

	return result, nil
}
