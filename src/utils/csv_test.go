package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

func TestReadWatchlist(t *testing.T) {
	t.Run("headed earnings csv", func(t *testing.T) {
		in := "symbol,name,earningsdate,earningshour,tradedate,weekday\n" +
			"aapl,Apple Inc,2024-06-06,amc,2024-06-06,Thursday\n" +
			"MSFT,Microsoft,2024-06-07,bmo,2024-06-06,Thursday\n" +
			",Blank,2024-06-07,bmo,2024-06-06,Friday\n"

		watchlist, err := ReadWatchlist(strings.NewReader(in))
		require.NoError(t, err)
		require.Len(t, watchlist, 3)

		assert.Equal(t, eventmodels.StockSymbol("AAPL"), watchlist[0].GetSymbol())
		assert.Equal(t, "Apple Inc", watchlist[0].Name)
		assert.Equal(t, eventmodels.EarningsHourAfterClose, watchlist[0].GetEarningsHour())
		assert.Equal(t, eventmodels.EarningsHourBeforeOpen, watchlist[1].GetEarningsHour())
		assert.Len(t, watchlist.FilterByWeekday("thursday"), 2)
		assert.ErrorIs(t, watchlist[2].Validate(), eventmodels.InvalidSymbolErr)
	})

	t.Run("DES import format", func(t *testing.T) {
		in := "DES,AAPL,STK,SMART/AMEX,,,,\nDES,MSFT,STK,SMART/AMEX,,,,\n"

		watchlist, err := ReadWatchlist(strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, []eventmodels.StockSymbol{"AAPL", "MSFT"}, watchlist.Symbols())
	})

	t.Run("empty input", func(t *testing.T) {
		watchlist, err := ReadWatchlist(strings.NewReader("\n"))
		require.NoError(t, err)
		assert.Empty(t, watchlist)
	})

	t.Run("DES round trip", func(t *testing.T) {
		var buf bytes.Buffer
		watchlist := eventmodels.Watchlist{{Symbol: "AAPL"}, {Symbol: "aapl"}, {Symbol: "NVDA"}}
		require.NoError(t, WriteDESWatchlist(&buf, watchlist))
		assert.Equal(t, "DES,AAPL,STK,SMART/AMEX,,,,\nDES,NVDA,STK,SMART/AMEX,,,,\n", buf.String())

		back, err := ReadWatchlist(&buf)
		require.NoError(t, err)
		assert.Len(t, back, 2)
	})
}

func TestExportDESWatchlist(t *testing.T) {
	out := filepath.Join(t.TempDir(), "exports", "accepted.csv")
	require.NoError(t, ExportDESWatchlist(out, eventmodels.Watchlist{{Symbol: "nvda"}, {Symbol: "AAPL"}}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "DES,NVDA,STK,SMART/AMEX,,,,\nDES,AAPL,STK,SMART/AMEX,,,,\n", string(data))

	back, err := ReadWatchlistFile(out)
	require.NoError(t, err)
	assert.Equal(t, []eventmodels.StockSymbol{"NVDA", "AAPL"}, back.Symbols())
}

func TestWriteScreeningResults(t *testing.T) {
	expiry := time.Date(2024, 6, 7, 0, 0, 0, 0, eventmodels.NewYorkLocation())
	call := &eventmodels.OptionLeg{Contract: &eventmodels.OptionContract{Strike: decimal.NewFromInt(119)}}

	results := []*eventmodels.ScreeningResult{
		{
			Symbol:    "AAPL",
			Mark:      118.61,
			ChainSize: 10,
			Expiry:    expiry,
			ATMCall:   call,
			Verdict:   eventmodels.NewAcceptedVerdict(),
			Analysis: &eventmodels.VolatilityAnalysis{
				AveragePercentMove: 5,
				ExpectedMove:       3.8,
				StrangleBoundaries: eventmodels.PriceRange{Low: 112.68, High: 124.54},
			},
		},
		{Symbol: "XYZ", Mark: 23, Verdict: eventmodels.NewRejectedVerdict("too cheap")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteScreeningResults(&buf, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "symbol,verdict,reason,mark,expiry,chain_size,atm_strike,strangle_call_strike,strangle_put_strike,avg_percent_move,expected_move,strangle_low,strangle_high", lines[0])
	assert.Equal(t, "AAPL,accepted,,118.61,2024-06-07,10,119,,,5.00,3.80,112.68,124.54", lines[1])
	assert.Equal(t, "XYZ,rejected,too cheap,23.00,,0,,,,,,,", lines[2])
}
