package eventmodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenerConfig(t *testing.T) {
	t.Run("empty document yields defaults", func(t *testing.T) {
		cfg, err := ParseScreenerConfig([]byte(""))
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, cfg.Gateway.RequestTimeout)
		assert.Equal(t, 120*time.Second, cfg.Gateway.HistoricalTimeout)
		assert.Equal(t, 14, cfg.Historical.TopMoves)
		assert.Equal(t, 3, cfg.Historical.LookbackYears)
		assert.Equal(t, 40.0, cfg.Suitability.MinPrice)
		assert.InDelta(t, 1.2533, cfg.ExpectedMove.StraddleMultiplier, 1e-4)
	})

	t.Run("overrides", func(t *testing.T) {
		doc := `
gateway:
  url: ws://gateway:4001/ws
  requestTimeout: 2s
  maxRequestsPerSecond: 10
historical:
  source: polygon
  topMoves: 5
  minPercentMove: 3.5
suitability:
  minPrice: 25
  maxSpreadPercent: 15
`
		cfg, err := ParseScreenerConfig([]byte(doc))
		require.NoError(t, err)
		assert.Equal(t, "ws://gateway:4001/ws", cfg.GatewayURL(false))
		assert.Equal(t, "ws://127.0.0.1:7497/ws", cfg.GatewayURL(true))
		assert.Equal(t, 2*time.Second, cfg.Gateway.RequestTimeout)
		assert.Equal(t, 10*time.Second, cfg.Gateway.ConnectTimeout)
		assert.Equal(t, HistoricalSourcePolygon, cfg.Historical.Source)
		assert.Equal(t, 5, cfg.Historical.TopMoves)
		assert.Equal(t, 3.5, cfg.Historical.MinPercentMove)
		assert.Equal(t, 25.0, cfg.Suitability.MinPrice)
		assert.Equal(t, 15.0, cfg.Suitability.MaxSpreadPercent)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseScreenerConfig([]byte("historical:\n  source: yahoo\n"))
		assert.ErrorIs(t, err, InvalidConfigErr)

		_, err = ParseScreenerConfig([]byte("chain:\n  minDTE: 10\n  maxDTE: 5\n"))
		assert.ErrorIs(t, err, InvalidConfigErr)

		_, err = ParseScreenerConfig([]byte("gateway: [1, 2"))
		assert.Error(t, err)
	})
}

func TestWatchlist(t *testing.T) {
	w := Watchlist{
		{Symbol: "aapl", Weekday: "Thursday"},
		{Symbol: "MSFT", Weekday: "Tuesday"},
		{Symbol: "AAPL", Weekday: "thursday"},
	}

	assert.Equal(t, []StockSymbol{"AAPL", "MSFT"}, w.Symbols())
	assert.Len(t, w.FilterByWeekday("THURSDAY"), 2)
	assert.Len(t, w.FilterByWeekday(""), 3)
	assert.Error(t, (&WatchlistEntry{Symbol: " "}).Validate())
}
