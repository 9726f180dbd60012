package eventservices

import (
	"context"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

// HistoricalVolatilityAnalyzer measures the largest daily ranges of an
// underlying and derives expected and historical price ranges from them.
type HistoricalVolatilityAnalyzer struct {
	source             CandleSource
	cfg                eventmodels.HistoricalConfig
	straddleMultiplier float64
}

// RankMoves converts candles to move records ordered by percent move,
// largest first, ties going to the earlier date. Invalid candles are skipped.
func RankMoves(candles []eventmodels.Candle) []eventmodels.MoveRecord {
	moves := make([]eventmodels.MoveRecord, 0, len(candles))
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			log.Debugf("RankMoves: skipping candle %s: %v", c.Date.Format("2006-01-02"), err)
			continue
		}

		moves = append(moves, eventmodels.NewMoveRecord(c))
	}

	sort.SliceStable(moves, func(i, j int) bool {
		if moves[i].PercentMove != moves[j].PercentMove {
			return moves[i].PercentMove > moves[j].PercentMove
		}

		return moves[i].Date.Before(moves[j].Date)
	})

	return moves
}

// RetainMoves keeps ranked moves of at least minPercentMove, then the first topK.
func RetainMoves(ranked []eventmodels.MoveRecord, topK int, minPercentMove float64) []eventmodels.MoveRecord {
	var out []eventmodels.MoveRecord
	for _, m := range ranked {
		if len(out) >= topK {
			break
		}

		if m.PercentMove < minPercentMove {
			break
		}

		out = append(out, m)
	}

	return out
}

func AveragePercentMove(moves []eventmodels.MoveRecord) float64 {
	data := make(stats.Float64Data, 0, len(moves))
	for _, m := range moves {
		data = append(data, m.PercentMove)
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return 0
	}

	return mean
}

func HistoricalRange(mark, averagePercentMove float64) eventmodels.PriceRange {
	return eventmodels.PriceRange{
		Low:  mark * (1 - averagePercentMove/100),
		High: mark * (1 + averagePercentMove/100),
	}
}

// ExpectedMove scales the at-the-money straddle price into a one standard
// deviation move.
func ExpectedMove(straddle, multiplier float64) float64 {
	return straddle * multiplier
}

func ExpectedRange(mark, expectedMove float64) eventmodels.PriceRange {
	return eventmodels.PriceRange{
		Low:  mark - expectedMove,
		High: mark + expectedMove,
	}
}

// Analyze fetches the lookback window of daily candles and returns the
// retained moves with the derived ranges. straddle is the combined ATM call
// and put price.
func (a *HistoricalVolatilityAnalyzer) Analyze(ctx context.Context, contract *eventmodels.Contract, mark, straddle float64) (*eventmodels.VolatilityAnalysis, error) {
	candles, err := a.source.FetchDailyCandles(ctx, contract, a.cfg.LookbackYears)
	if err != nil {
		return nil, fmt.Errorf("HistoricalVolatilityAnalyzer.Analyze: %w", err)
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("HistoricalVolatilityAnalyzer.Analyze: no candles for %s: %w", contract.Symbol, eventmodels.NoDataErr)
	}

	ranked := RankMoves(candles)
	if len(ranked) == 0 {
		return nil, fmt.Errorf("HistoricalVolatilityAnalyzer.Analyze: no valid candles for %s: %w", contract.Symbol, eventmodels.NoDataErr)
	}

	moves := RetainMoves(ranked, a.cfg.TopMoves, a.cfg.MinPercentMove)
	avg := AveragePercentMove(moves)
	em := ExpectedMove(straddle, a.straddleMultiplier)

	analysis := &eventmodels.VolatilityAnalysis{
		Moves:              moves,
		AveragePercentMove: avg,
		HistoricalRange:    HistoricalRange(mark, avg),
		ExpectedMove:       em,
		ExpectedRange:      ExpectedRange(mark, em),
	}

	analysis.StrangleBoundaries = analysis.ExpectedRange.Envelope(analysis.HistoricalRange)

	log.WithField("symbol", contract.Symbol).Debugf("analyzed %d candles, retained %d moves, avg %.2f%%", len(candles), len(moves), avg)

	return analysis, nil
}

func NewHistoricalVolatilityAnalyzer(source CandleSource, cfg eventmodels.HistoricalConfig, straddleMultiplier float64) *HistoricalVolatilityAnalyzer {
	return &HistoricalVolatilityAnalyzer{
		source:             source,
		cfg:                cfg,
		straddleMultiplier: straddleMultiplier,
	}
}
