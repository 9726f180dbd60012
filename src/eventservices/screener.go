package eventservices

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

// ResultHandler receives each result as soon as its symbol is done.
type ResultHandler func(result *eventmodels.ScreeningResult)

// Screener runs the per symbol workflow: resolve, fetch the weekly chain,
// quote, filter, then analyze historical moves.
type Screener struct {
	cfg      *eventmodels.ScreenerConfig
	resolver *ContractResolver
	chains   *OptionChainFetcher
	quotes   *MarketDataSnapshot
	analyzer *HistoricalVolatilityAnalyzer
	filter   *SuitabilityFilter
	verdicts metric.Int64Counter
}

// Run screens every watchlist entry in order. A connection error or a
// cancelled context stops the run and is returned along with the results
// completed so far.
func (s *Screener) Run(ctx context.Context, watchlist eventmodels.Watchlist, liveHours bool, onResult ResultHandler) ([]*eventmodels.ScreeningResult, error) {
	var results []*eventmodels.ScreeningResult
	for _, entry := range watchlist {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("Screener.Run: %w", err)
		}

		result, err := s.ScreenSymbol(ctx, entry, liveHours)
		if err != nil {
			return results, fmt.Errorf("Screener.Run: aborted at %s: %w", entry.GetSymbol(), err)
		}

		results = append(results, result)

		if onResult != nil {
			onResult(result)
		}
	}

	return results, nil
}

// ScreenSymbol always yields a result unless the session became unusable or
// ctx ended.
func (s *Screener) ScreenSymbol(ctx context.Context, entry *eventmodels.WatchlistEntry, liveHours bool) (*eventmodels.ScreeningResult, error) {
	symbol := entry.GetSymbol()

	ctx, span := otel.Tracer("Screener").Start(ctx, "ScreenSymbol", trace.WithAttributes(
		attribute.String("symbol", symbol.String()),
		attribute.Bool("liveHours", liveHours),
	))
	defer span.End()

	result := &eventmodels.ScreeningResult{
		Symbol: symbol,
		Entry:  entry,
	}

	err := s.screen(ctx, result, liveHours)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%v: %w", err, ctxErr)
		}

		// a deadline inside a single request is recoverable, the run's own is not
		if IsFatal(err) || ctx.Err() != nil {
			span.RecordError(err)
			return nil, err
		}

		if IsRecoverable(err) {
			log.WithField("symbol", symbol).Warnf("skipping %s during %s: %v", symbol, result.State, err)
		} else {
			log.WithField("symbol", symbol).Errorf("unexpected error screening %s during %s: %v", symbol, result.State, err)
		}

		result.Verdict = eventmodels.NewErrorVerdict(err)
	}

	result.State = eventmodels.ScreeningStateDone

	span.SetAttributes(attribute.String("verdict", string(result.Verdict.Kind)))

	if s.verdicts != nil {
		s.verdicts.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", string(result.Verdict.Kind))))
	}

	return result, nil
}

func (s *Screener) screen(ctx context.Context, result *eventmodels.ScreeningResult, liveHours bool) error {
	result.State = eventmodels.ScreeningStateResolving
	contract, err := s.resolver.Resolve(ctx, result.Symbol)
	if err != nil {
		return err
	}

	result.Underlying = contract

	result.State = eventmodels.ScreeningStateQuoteFetching
	quote, err := s.quotes.Quote(ctx, contract, liveHours)
	if err != nil {
		return err
	}

	mark, ok := quote.ReferencePrice()
	if !ok {
		return fmt.Errorf("no price for %s: %w", result.Symbol, eventmodels.NoDataErr)
	}

	result.UnderlyingQuote = quote
	result.Mark = mark

	result.State = eventmodels.ScreeningStateFiltering
	if verdict := s.filter.EvaluatePrice(result.Symbol, quote); verdict.Kind != eventmodels.VerdictAccepted {
		result.Verdict = verdict
		return verdict.Err
	}

	result.State = eventmodels.ScreeningStateChainFetching
	chain, expiry, err := s.chains.FetchWeeklyChain(ctx, contract, s.cfg.Chain.WeeklyToleranceDays)
	if err != nil {
		return err
	}

	result.ChainSize = len(chain)
	result.Expiry = expiry

	result.State = eventmodels.ScreeningStateQuoteFetching
	selection, err := SelectStrikes(chain, mark)
	if err != nil {
		return err
	}

	if result.ATMCall, err = s.leg(ctx, selection.ATMCall, liveHours); err != nil {
		return err
	}

	if result.ATMPut, err = s.leg(ctx, selection.ATMPut, liveHours); err != nil {
		return err
	}

	result.Partial = selection.Partial
	for _, strangle := range []struct {
		contract *eventmodels.OptionContract
		leg      **eventmodels.OptionLeg
	}{
		{selection.StrangleCall, &result.StrangleCall},
		{selection.StranglePut, &result.StranglePut},
	} {
		if strangle.contract == nil {
			continue
		}

		leg, err := s.leg(ctx, strangle.contract, liveHours)
		if err != nil {
			if IsFatal(err) {
				return err
			}

			log.WithField("symbol", result.Symbol).Warnf("omitting strangle leg %s: %v", strangle.contract, err)
			result.Partial = true
			continue
		}

		*strangle.leg = leg
	}

	result.State = eventmodels.ScreeningStateFiltering
	result.Verdict = s.filter.Evaluate(result.Symbol, quote, ChainData{ATMCall: result.ATMCall, ATMPut: result.ATMPut})
	if result.Verdict.Kind != eventmodels.VerdictAccepted {
		if result.Verdict.Err != nil {
			return result.Verdict.Err
		}

		return nil
	}

	result.State = eventmodels.ScreeningStateAnalyzing
	callPrice, callOK := result.ATMCall.Price()
	putPrice, putOK := result.ATMPut.Price()
	if !callOK || !putOK {
		return fmt.Errorf("no straddle price for %s: %w", result.Symbol, eventmodels.NoDataErr)
	}

	analysis, err := s.analyzer.Analyze(ctx, contract, mark, callPrice+putPrice)
	if err != nil {
		return err
	}

	result.Analysis = analysis
	return nil
}

func (s *Screener) leg(ctx context.Context, option *eventmodels.OptionContract, liveHours bool) (*eventmodels.OptionLeg, error) {
	quote, err := s.quotes.OptionQuote(ctx, option, liveHours)
	if err != nil {
		return nil, err
	}

	return &eventmodels.OptionLeg{Contract: option, Quote: quote}, nil
}

// Summarize counts results by verdict kind.
func Summarize(results []*eventmodels.ScreeningResult) map[eventmodels.VerdictKind]int {
	counts := make(map[eventmodels.VerdictKind]int)
	for _, r := range results {
		counts[r.Verdict.Kind]++
	}

	return counts
}

// IsRecoverable reports whether err is one of the expected per symbol failures.
func IsRecoverable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}

	var gatewayErr *eventmodels.GatewayError
	return errors.Is(err, eventmodels.TimeoutErr) || errors.Is(err, eventmodels.NoDataErr) || errors.Is(err, eventmodels.InvalidSymbolErr) || errors.As(err, &gatewayErr)
}

func NewScreener(cfg *eventmodels.ScreenerConfig, resolver *ContractResolver, chains *OptionChainFetcher, quotes *MarketDataSnapshot, analyzer *HistoricalVolatilityAnalyzer, filter *SuitabilityFilter) *Screener {
	verdicts, err := otel.Meter("Screener").Int64Counter("screener.verdicts", metric.WithDescription("screening verdicts by kind"))
	if err != nil {
		log.Warnf("NewScreener: failed to create verdict counter: %v", err)
	}

	return &Screener{
		cfg:      cfg,
		resolver: resolver,
		chains:   chains,
		quotes:   quotes,
		analyzer: analyzer,
		filter:   filter,
		verdicts: verdicts,
	}
}
