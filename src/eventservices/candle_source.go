package eventservices

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

// CandleSource provides daily candles for the lookback window ending yesterday.
type CandleSource interface {
	FetchDailyCandles(ctx context.Context, contract *eventmodels.Contract, lookbackYears int) ([]eventmodels.Candle, error)
}

type HistoricalDataRequester interface {
	RequestHistoricalData(ctx context.Context, params eventmodels.HistoricalDataParams) ([]eventmodels.Candle, error)
}

// beforeToday drops any bar for the current session.
func beforeToday(candles []eventmodels.Candle, now time.Time) []eventmodels.Candle {
	today := eventmodels.DateOnly(now)

	var out []eventmodels.Candle
	for _, c := range candles {
		if eventmodels.DateOnly(c.Date).Before(today) {
			out = append(out, c)
		}
	}

	return out
}

// asTimeout maps an http client deadline to TimeoutErr.
func asTimeout(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%v: %w", err, eventmodels.TimeoutErr)
	}

	return err
}

type GatewayCandleSource struct {
	requester HistoricalDataRequester
	now       func() time.Time
}

func (s *GatewayCandleSource) FetchDailyCandles(ctx context.Context, contract *eventmodels.Contract, lookbackYears int) ([]eventmodels.Candle, error) {
	now := s.now()
	end := eventmodels.DateOnly(now)

	candles, err := s.requester.RequestHistoricalData(ctx, eventmodels.HistoricalDataParams{
		ConID:       contract.ConID,
		Symbol:      contract.Symbol.String(),
		EndDateTime: end.Format("20060102 15:04:05") + " US/Eastern",
		Duration:    fmt.Sprintf("%d Y", lookbackYears),
		BarSize:     "1 day",
		WhatToShow:  "TRADES",
		UseRTH:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("GatewayCandleSource.FetchDailyCandles: %w", err)
	}

	return beforeToday(candles, now), nil
}

func NewGatewayCandleSource(requester HistoricalDataRequester, now func() time.Time) *GatewayCandleSource {
	if now == nil {
		now = time.Now
	}

	return &GatewayCandleSource{
		requester: requester,
		now:       now,
	}
}

type PolygonCandleSource struct {
	Client *polygon.Client
	now    func() time.Time
}

func (s *PolygonCandleSource) FetchDailyCandles(ctx context.Context, contract *eventmodels.Contract, lookbackYears int) ([]eventmodels.Candle, error) {
	now := s.now()
	to := eventmodels.DateOnly(now).AddDate(0, 0, -1)
	from := to.AddDate(-lookbackYears, 0, 0)

	log.Debugf("fetching polygon daily candles for symbol %s", contract.Symbol)

	params := models.ListAggsParams{
		Ticker:     contract.Symbol.String(),
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithOrder(models.Asc).WithAdjusted(true)

	iter := s.Client.ListAggs(ctx, params)

	var candles []eventmodels.Candle
	for iter.Next() {
		candles = append(candles, eventmodels.Candle{
			Date:  eventmodels.DateOnly(time.Time(iter.Item().Timestamp)),
			Open:  iter.Item().Open,
			High:  iter.Item().High,
			Low:   iter.Item().Low,
			Close: iter.Item().Close,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("PolygonCandleSource.FetchDailyCandles: %s: %w", contract.Symbol, asTimeout(err))
	}

	return beforeToday(candles, now), nil
}

func NewPolygonCandleSource(apiKey string, httpClient *http.Client, now func() time.Time) *PolygonCandleSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	if now == nil {
		now = time.Now
	}

	return &PolygonCandleSource{
		Client: polygon.NewWithClient(apiKey, httpClient),
		now:    now,
	}
}
