package run

import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/options-screener/src/eventmodels"
	"github.com/jiaming2012/options-screener/src/eventpubsub"
	"github.com/jiaming2012/options-screener/src/eventservices"
	"github.com/jiaming2012/options-screener/src/utils"
	"github.com/jiaming2012/options-screener/src/worker"
)

type RunArgs struct {
	Symbol         string
	WatchlistFile  string
	Weekday        string
	NoTradingHours bool
	Paper          bool
	CSVOut         string
	DESOut         string
}

type RunResult struct {
	Results []*eventmodels.ScreeningResult
	Summary map[eventmodels.VerdictKind]int
}

// LoadWatchlist returns the single --symbol entry, or the watchlist file
// filtered by weekday.
func LoadWatchlist(args RunArgs) (eventmodels.Watchlist, error) {
	if args.Symbol != "" {
		entry := &eventmodels.WatchlistEntry{Symbol: args.Symbol}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("LoadWatchlist: %w", err)
		}

		return eventmodels.Watchlist{entry}, nil
	}

	watchlist, err := utils.ReadWatchlistFile(args.WatchlistFile)
	if err != nil {
		return nil, fmt.Errorf("LoadWatchlist: %w", err)
	}

	filtered := watchlist.FilterByWeekday(args.Weekday)
	if len(filtered) < len(watchlist) {
		log.Infof("weekday filter %q kept %d of %d symbols", args.Weekday, len(filtered), len(watchlist))
	}

	return filtered, nil
}

func acceptedEntries(results []*eventmodels.ScreeningResult) eventmodels.Watchlist {
	var out eventmodels.Watchlist
	for _, r := range results {
		if r.Verdict.Kind == eventmodels.VerdictAccepted && r.Entry != nil {
			out = append(out, r.Entry)
		}
	}

	return out
}

func newCandleSource(cfg *eventmodels.ScreenerConfig, session *eventservices.GatewaySession) eventservices.CandleSource {
	if cfg.Historical.Source == eventmodels.HistoricalSourcePolygon {
		if cfg.Historical.PolygonAPIKey != "" {
			log.Info("using polygon for historical candles")
			return eventservices.NewPolygonCandleSource(cfg.Historical.PolygonAPIKey, utils.NewInstrumentedHTTPClient(cfg.Gateway.HistoricalTimeout), time.Now)
		}

		log.Warnf("historical.source is polygon but %s is not set, using the gateway", utils.PolygonAPIKeyEnv)
	}

	return eventservices.NewGatewayCandleSource(session, time.Now)
}

// Run connects to the gateway, screens the watchlist and prints the report
// to out. A ConnectionErr is returned as is.
func Run(ctx context.Context, cfg *eventmodels.ScreenerConfig, args RunArgs, out io.Writer) (RunResult, error) {
	watchlist, err := LoadWatchlist(args)
	if err != nil {
		return RunResult{}, err
	}

	if len(watchlist) == 0 {
		return RunResult{}, fmt.Errorf("Run: no symbols to screen: %w", eventmodels.NoDataErr)
	}

	liveHours := !args.NoTradingHours && eventmodels.IsRegularTradingHours(time.Now())
	if !liveHours {
		log.Info("outside regular trading hours, requesting snapshot quotes only")
	}

	gatewayURL := cfg.GatewayURL(args.Paper)
	log.Infof("connecting to %s", gatewayURL)

	bus := eventpubsub.NewBus()
	transport := worker.NewIBGatewayTransport(gatewayURL, bus)
	session := eventservices.NewGatewaySession(cfg.Gateway, transport, bus)

	if err := session.Connect(ctx); err != nil {
		return RunResult{}, fmt.Errorf("Run: %w", err)
	}

	defer session.Disconnect()

	screener := eventservices.NewScreener(
		cfg,
		eventservices.NewContractResolver(session),
		eventservices.NewOptionChainFetcher(session, cfg.Chain.Exchange, time.Now),
		eventservices.NewMarketDataSnapshot(session),
		eventservices.NewHistoricalVolatilityAnalyzer(newCandleSource(cfg, session), cfg.Historical, cfg.ExpectedMove.StraddleMultiplier),
		eventservices.NewSuitabilityFilter(cfg.Suitability),
	)

	report := NewReport(out, liveHours)

	results, err := screener.Run(ctx, watchlist, liveHours, report.PrintResult)
	report.PrintSummary(results)

	if args.CSVOut != "" && len(results) > 0 {
		if exportErr := utils.ExportScreeningResults(args.CSVOut, results); exportErr != nil {
			log.Errorf("failed to export results: %v", exportErr)
		}
	}

	if args.DESOut != "" {
		if exportErr := utils.ExportDESWatchlist(args.DESOut, acceptedEntries(results)); exportErr != nil {
			log.Errorf("failed to export accepted symbols: %v", exportErr)
		}
	}

	if err != nil {
		return RunResult{Results: results}, fmt.Errorf("Run: %w", err)
	}

	return RunResult{
		Results: results,
		Summary: eventservices.Summarize(results),
	}, nil
}
