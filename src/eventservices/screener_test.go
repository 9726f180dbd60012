package eventservices

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

// screenerGateway serves one weekly expiry per symbol with strikes one dollar apart.
type screenerGateway struct {
	*fakeGateway
	mutex   sync.Mutex
	stocks  map[string]int64
	strikes map[string][]float64
	prices  map[int64]float64
	errors  map[int64]int
	nextID  int64
}

func (g *screenerGateway) addSymbol(symbol string, mark float64, strikes map[float64][2]float64) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.nextID++
	conID := g.nextID * 1000
	g.stocks[symbol] = conID
	g.prices[conID] = mark

	for strike, prices := range strikes {
		g.strikes[symbol] = append(g.strikes[symbol], strike)
		g.prices[optionConID(conID, strike, "C")] = prices[0]
		g.prices[optionConID(conID, strike, "P")] = prices[1]
	}
}

func optionConID(underlying int64, strike float64, right string) int64 {
	id := underlying + int64(strike*2)
	if right == "P" {
		id += 500
	}

	return id
}

func newScreenerGateway() *screenerGateway {
	g := &screenerGateway{
		fakeGateway: newFakeGateway(),
		stocks:      make(map[string]int64),
		strikes:     make(map[string][]float64),
		prices:      make(map[int64]float64),
		errors:      make(map[int64]int),
	}

	expiry := time.Date(2024, 6, 7, 0, 0, 0, 0, eventmodels.NewYorkLocation())

	g.on(eventmodels.RequestKindContractDetails, func(req eventmodels.GatewayRequest) []*eventmodels.GatewayMessage {
		params := req.Params.(eventmodels.ContractDetailsParams)

		g.mutex.Lock()
		conID, found := g.stocks[params.Symbol]
		g.mutex.Unlock()

		if !found {
			return contractFrames()
		}

		return contractFrames(stockDTO(conID, params.Symbol))
	})

	g.on(eventmodels.RequestKindOptionChain, func(req eventmodels.GatewayRequest) []*eventmodels.GatewayMessage {
		params := req.Params.(eventmodels.OptionChainParams)

		g.mutex.Lock()
		defer g.mutex.Unlock()

		var dtos []*eventmodels.ContractDTO
		for _, strike := range g.strikes[params.Symbol] {
			for _, right := range []string{"C", "P"} {
				dtos = append(dtos, optionDTO(optionConID(params.UnderlyingConID, strike, right), params.Symbol, strike, right, expiry))
			}
		}

		return contractFrames(dtos...)
	})

	g.on(eventmodels.RequestKindMarketData, func(req eventmodels.GatewayRequest) []*eventmodels.GatewayMessage {
		params := req.Params.(eventmodels.MarketDataParams)

		g.mutex.Lock()
		price, found := g.prices[params.ConID]
		code := g.errors[params.ConID]
		g.mutex.Unlock()

		if code != 0 {
			return []*eventmodels.GatewayMessage{{Kind: eventmodels.GatewayMessageKindError, Code: code, Message: "gateway error"}}
		}

		if !found {
			return nil
		}

		if !params.Streaming {
			return []*eventmodels.GatewayMessage{tick(eventmodels.QuoteFieldMark, price)}
		}

		return []*eventmodels.GatewayMessage{
			tick(eventmodels.QuoteFieldBid, price-0.05),
			tick(eventmodels.QuoteFieldAsk, price+0.05),
			tick(eventmodels.QuoteFieldLast, price),
		}
	})

	return g
}

func defaultStrikes() map[float64][2]float64 {
	return map[float64][2]float64{
		117: {3.1, 0.9},
		118: {2.5, 1.3},
		119: {2.0, 1.8},
		120: {1.5, 2.4},
		121: {1.1, 3.0},
	}
}

func newTestScreener(t *testing.T, g *screenerGateway, candles CandleSource) (*Screener, *GatewaySession) {
	session := NewGatewaySession(testGatewayConfig(), g, g.bus)
	require.NoError(t, session.Connect(context.Background()))

	cfg := eventmodels.NewDefaultScreenerConfig()
	cfg.Historical.TopMoves = 2
	cfg.ExpectedMove.StraddleMultiplier = 1

	screener := NewScreener(
		cfg,
		NewContractResolver(session),
		NewOptionChainFetcher(session, cfg.Chain.Exchange, testNow),
		NewMarketDataSnapshot(session),
		NewHistoricalVolatilityAnalyzer(candles, cfg.Historical, cfg.ExpectedMove.StraddleMultiplier),
		NewSuitabilityFilter(cfg.Suitability),
	)

	return screener, session
}

func testCandles() *stubCandleSource {
	return &stubCandleSource{candles: []eventmodels.Candle{
		{Date: day(0), Open: 100, High: 104, Low: 100, Close: 103},
		{Date: day(1), Open: 100, High: 106, Low: 100, Close: 101},
		{Date: day(2), Open: 100, High: 101, Low: 100, Close: 100.5},
	}}
}

func watchlist(symbols ...string) eventmodels.Watchlist {
	var w eventmodels.Watchlist
	for _, s := range symbols {
		w = append(w, &eventmodels.WatchlistEntry{Symbol: s})
	}

	return w
}

func TestScreener(t *testing.T) {
	t.Run("accepted candidate with strangle legs", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("AAPL", 118.61, defaultStrikes())

		candles := testCandles()
		screener, session := newTestScreener(t, g, candles)
		defer session.Disconnect()

		var handled []*eventmodels.ScreeningResult
		results, err := screener.Run(context.Background(), watchlist("AAPL"), false, func(r *eventmodels.ScreeningResult) {
			handled = append(handled, r)
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, results, handled)

		r := results[0]
		assert.Equal(t, eventmodels.VerdictAccepted, r.Verdict.Kind)
		assert.Equal(t, eventmodels.ScreeningStateDone, r.State)
		assert.Equal(t, 118.61, r.Mark)
		assert.Equal(t, 10, r.ChainSize)
		assert.Equal(t, "2024-06-07", r.Expiry.Format("2006-01-02"))
		assert.Equal(t, "119", r.ATMCall.Contract.Strike.String())
		assert.Equal(t, "119", r.ATMPut.Contract.Strike.String())
		assert.Equal(t, "120", r.StrangleCall.Contract.Strike.String())
		assert.Equal(t, "118", r.StranglePut.Contract.Strike.String())
		assert.False(t, r.Partial)

		require.NotNil(t, r.Analysis)
		assert.InDelta(t, 3.8, r.Analysis.ExpectedMove, 1e-9)
		assert.InDelta(t, 5.0, r.Analysis.AveragePercentMove, 1e-9)
		assert.InDelta(t, 118.61-3.8, r.Analysis.ExpectedRange.Low, 1e-9)
		assert.InDelta(t, 118.61*0.95, r.Analysis.StrangleBoundaries.Low, 1e-9)
		assert.Equal(t, 1, candles.calls)
	})

	t.Run("too cheap without a weekly chain is still rejected on price", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("XYZ", 23.0, map[float64][2]float64{})

		screener, session := newTestScreener(t, g, testCandles())
		defer session.Disconnect()

		results, err := screener.Run(context.Background(), watchlist("XYZ"), false, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.Equal(t, eventmodels.VerdictRejected, results[0].Verdict.Kind)
		assert.Equal(t, ReasonTooCheap, results[0].Verdict.Reason)
		assert.Empty(t, g.sentOf(eventmodels.RequestKindOptionChain))
		assert.Len(t, g.sentOf(eventmodels.RequestKindMarketData), 1)
	})

	t.Run("too cheap candidate never requests history", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("XYZ", 23.0, map[float64][2]float64{22: {1.2, 0.3}, 23: {0.6, 0.6}, 24: {0.3, 1.2}})

		candles := testCandles()
		screener, session := newTestScreener(t, g, candles)
		defer session.Disconnect()

		results, err := screener.Run(context.Background(), watchlist("XYZ"), false, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.Equal(t, eventmodels.VerdictRejected, results[0].Verdict.Kind)
		assert.Equal(t, ReasonTooCheap, results[0].Verdict.Reason)
		assert.Nil(t, results[0].Analysis)
		assert.Equal(t, 0, candles.calls)
		assert.Empty(t, g.sentOf(eventmodels.RequestKindHistoricalData))
	})

	t.Run("market data timeout is an error verdict and the batch continues", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("SLOW", 118.61, defaultStrikes())
		g.addSymbol("AAPL", 118.61, defaultStrikes())

		// the underlying quote for SLOW is never answered
		g.mutex.Lock()
		delete(g.prices, g.stocks["SLOW"])
		g.mutex.Unlock()

		screener, session := newTestScreener(t, g, testCandles())
		defer session.Disconnect()

		results, err := screener.Run(context.Background(), watchlist("SLOW", "AAPL"), false, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, eventmodels.VerdictError, results[0].Verdict.Kind)
		assert.ErrorIs(t, results[0].Verdict.Err, eventmodels.TimeoutErr)
		assert.Equal(t, eventmodels.ScreeningStateDone, results[0].State)
		assert.Equal(t, eventmodels.VerdictAccepted, results[1].Verdict.Kind)
	})

	t.Run("historical data timeout is an error verdict and the batch continues", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("SLOW", 118.61, defaultStrikes())
		g.addSymbol("AAPL", 118.61, defaultStrikes())

		screener, session := newTestScreener(t, g, newTestPolygonSource("SLOW"))
		defer session.Disconnect()

		results, err := screener.Run(context.Background(), watchlist("SLOW", "AAPL"), false, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, eventmodels.VerdictError, results[0].Verdict.Kind)
		assert.ErrorIs(t, results[0].Verdict.Err, eventmodels.TimeoutErr)
		assert.Equal(t, eventmodels.VerdictAccepted, results[1].Verdict.Kind)
		require.NotNil(t, results[1].Analysis)
		assert.InDelta(t, 5.0, results[1].Analysis.AveragePercentMove, 1e-9)
	})

	t.Run("request deadline from the caller is recoverable", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("SLOW", 118.61, defaultStrikes())
		g.addSymbol("AAPL", 118.61, defaultStrikes())

		candles := &stubCandleSource{err: fmt.Errorf("fetch: %w", context.DeadlineExceeded)}
		screener, session := newTestScreener(t, g, candles)
		defer session.Disconnect()

		results, err := screener.Run(context.Background(), watchlist("SLOW", "AAPL"), false, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 2, candles.calls)
		for _, r := range results {
			assert.Equal(t, eventmodels.VerdictError, r.Verdict.Kind)
		}
	})

	t.Run("run deadline stops the batch", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("AAPL", 118.61, defaultStrikes())

		// the underlying quote is never answered
		g.mutex.Lock()
		delete(g.prices, g.stocks["AAPL"])
		g.mutex.Unlock()

		screener, session := newTestScreener(t, g, testCandles())
		defer session.Disconnect()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		results, err := screener.Run(ctx, watchlist("AAPL", "MSFT"), false, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, results)
	})

	t.Run("outside trading hours only snapshots are requested", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("AAPL", 118.61, defaultStrikes())

		screener, session := newTestScreener(t, g, testCandles())
		defer session.Disconnect()

		_, err := screener.Run(context.Background(), watchlist("AAPL"), false, nil)
		require.NoError(t, err)

		requests := g.sentOf(eventmodels.RequestKindMarketData)
		require.Len(t, requests, 5)
		for _, req := range requests {
			assert.False(t, req.Params.(eventmodels.MarketDataParams).Streaming)
		}

		assert.Empty(t, g.sentOf(eventmodels.RequestKindCancelMarketData))
	})

	t.Run("live hours stream and cancel", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("AAPL", 118.61, defaultStrikes())

		screener, session := newTestScreener(t, g, testCandles())
		defer session.Disconnect()

		results, err := screener.Run(context.Background(), watchlist("AAPL"), true, nil)
		require.NoError(t, err)
		assert.Equal(t, eventmodels.VerdictAccepted, results[0].Verdict.Kind)
		assert.False(t, results[0].UnderlyingQuote.Stale)

		for _, req := range g.sentOf(eventmodels.RequestKindMarketData) {
			assert.True(t, req.Params.(eventmodels.MarketDataParams).Streaming)
		}

		assert.Len(t, g.sentOf(eventmodels.RequestKindCancelMarketData), 5)
	})

	t.Run("failed strangle leg is omitted", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("AAPL", 118.61, defaultStrikes())

		g.mutex.Lock()
		g.errors[optionConID(g.stocks["AAPL"], 120, "C")] = 354
		g.mutex.Unlock()

		screener, session := newTestScreener(t, g, testCandles())
		defer session.Disconnect()

		results, err := screener.Run(context.Background(), watchlist("AAPL"), false, nil)
		require.NoError(t, err)

		r := results[0]
		assert.Equal(t, eventmodels.VerdictAccepted, r.Verdict.Kind)
		assert.Nil(t, r.StrangleCall)
		assert.NotNil(t, r.StranglePut)
		assert.True(t, r.Partial)
	})

	t.Run("unknown symbol is an error verdict", func(t *testing.T) {
		g := newScreenerGateway()
		screener, session := newTestScreener(t, g, testCandles())
		defer session.Disconnect()

		results, err := screener.Run(context.Background(), watchlist("NOPE"), false, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, results[0].Verdict.Err, eventmodels.NoDataErr)
		assert.True(t, strings.Contains(results[0].Verdict.Reason, "NOPE"))
	})

	t.Run("connection loss aborts the run", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("AAPL", 118.61, defaultStrikes())

		g.on(eventmodels.RequestKindOptionChain, func(req eventmodels.GatewayRequest) []*eventmodels.GatewayMessage {
			g.disconnect()
			return nil
		})

		screener, session := newTestScreener(t, g, testCandles())
		defer session.Disconnect()

		var handled int
		results, err := screener.Run(context.Background(), watchlist("AAPL", "MSFT"), false, func(*eventmodels.ScreeningResult) { handled++ })
		assert.ErrorIs(t, err, eventmodels.ConnectionErr)
		assert.Empty(t, results)
		assert.Equal(t, 0, handled)
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		g := newScreenerGateway()
		g.addSymbol("AAPL", 118.61, defaultStrikes())

		screener, session := newTestScreener(t, g, testCandles())
		defer session.Disconnect()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := screener.Run(ctx, watchlist("AAPL"), false, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSummarize(t *testing.T) {
	results := []*eventmodels.ScreeningResult{
		{Verdict: eventmodels.NewAcceptedVerdict()},
		{Verdict: eventmodels.NewRejectedVerdict(ReasonTooCheap)},
		{Verdict: eventmodels.NewRejectedVerdict(ReasonTooCheap)},
	}

	counts := Summarize(results)
	assert.Equal(t, 1, counts[eventmodels.VerdictAccepted])
	assert.Equal(t, 2, counts[eventmodels.VerdictRejected])
	assert.Equal(t, 0, counts[eventmodels.VerdictError])
}
