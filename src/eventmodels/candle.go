package eventmodels

import (
	"fmt"
	"time"
)

type Candle struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

func (c Candle) Validate() error {
	if c.Low <= 0 {
		return fmt.Errorf("Candle: low must be positive: %v", c.Low)
	}

	if c.High < c.Low {
		return fmt.Errorf("Candle: high %v is below low %v", c.High, c.Low)
	}

	return nil
}

// MoveRecord is the intraday range of one daily candle.
type MoveRecord struct {
	Date         time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	CandleLength float64
	PercentMove  float64
}

func NewMoveRecord(c Candle) MoveRecord {
	length := c.High - c.Low
	return MoveRecord{
		Date:         c.Date,
		Open:         c.Open,
		High:         c.High,
		Low:          c.Low,
		Close:        c.Close,
		CandleLength: length,
		PercentMove:  length / c.Low * 100,
	}
}

type PriceRange struct {
	Low  float64
	High float64
}

// Envelope returns the smallest range covering both r and other.
func (r PriceRange) Envelope(other PriceRange) PriceRange {
	out := r
	if other.Low < out.Low {
		out.Low = other.Low
	}

	if other.High > out.High {
		out.High = other.High
	}

	return out
}

func (r PriceRange) String() string {
	return fmt.Sprintf("%.2f - %.2f", r.Low, r.High)
}
