package eventmodels

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type OptionContract struct {
	Contract
	Underlying *Contract
	Strike     decimal.Decimal
	Expiry     time.Time
	Right      OptionRight
	Multiplier int
}

// DaysToExpiry counts calendar days between the New York dates of now and the expiry.
func (o *OptionContract) DaysToExpiry(now time.Time) int {
	return DaysBetween(now, o.Expiry)
}

func (o *OptionContract) String() string {
	return fmt.Sprintf("%s %s %s %s", o.Symbol, o.Expiry.Format("20060102"), o.Strike.String(), o.Right.Short())
}

type OptionContracts []*OptionContract

// Strikes returns the distinct strikes in ascending order.
func (contracts OptionContracts) Strikes() []decimal.Decimal {
	seen := make(map[string]bool)
	var strikes []decimal.Decimal
	for _, c := range contracts {
		key := c.Strike.String()
		if seen[key] {
			continue
		}

		seen[key] = true
		strikes = append(strikes, c.Strike)
	}

	sort.Slice(strikes, func(i, j int) bool {
		return strikes[i].LessThan(strikes[j])
	})

	return strikes
}

// Expirations returns the distinct expiry dates in ascending order.
func (contracts OptionContracts) Expirations() []time.Time {
	seen := make(map[string]bool)
	var expirations []time.Time
	for _, c := range contracts {
		key := c.Expiry.Format("20060102")
		if seen[key] {
			continue
		}

		seen[key] = true
		expirations = append(expirations, c.Expiry)
	}

	sort.Slice(expirations, func(i, j int) bool {
		return expirations[i].Before(expirations[j])
	})

	return expirations
}

func (contracts OptionContracts) ForExpiry(expiry time.Time) OptionContracts {
	key := expiry.Format("20060102")
	var out OptionContracts
	for _, c := range contracts {
		if c.Expiry.Format("20060102") == key {
			out = append(out, c)
		}
	}

	return out
}

// Find returns the contract with the given strike and right, or nil.
func (contracts OptionContracts) Find(strike decimal.Decimal, right OptionRight) *OptionContract {
	for _, c := range contracts {
		if c.Right == right && c.Strike.Equal(strike) {
			return c
		}
	}

	return nil
}
