package run

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

func TestPrintChain(t *testing.T) {
	underlying := &eventmodels.Contract{Symbol: "AAPL", SecType: eventmodels.SecurityTypeStock}
	sep := time.Date(2024, 9, 20, 0, 0, 0, 0, eventmodels.NewYorkLocation())
	oct := time.Date(2024, 10, 18, 0, 0, 0, 0, eventmodels.NewYorkLocation())

	option := func(expiry time.Time, strike int64, right eventmodels.OptionRight, local string) *eventmodels.OptionContract {
		return &eventmodels.OptionContract{
			Contract:   eventmodels.Contract{Symbol: "AAPL", SecType: eventmodels.SecurityTypeOption, LocalSymbol: local},
			Underlying: underlying,
			Strike:     decimal.NewFromInt(strike),
			Expiry:     expiry,
			Right:      right,
		}
	}

	chain := eventmodels.OptionContracts{
		option(oct, 120, eventmodels.OptionRightCall, "AAPL  241018C00120000"),
		option(sep, 120, eventmodels.OptionRightCall, "AAPL  240920C00120000"),
		option(sep, 120, eventmodels.OptionRightPut, "AAPL  240920P00120000"),
	}

	callQuote := eventmodels.NewQuote(&chain[1].Contract, true)
	callQuote.ApplyTick(eventmodels.QuoteFieldMark, 4.25, time.Now())
	putQuote := eventmodels.NewQuote(&chain[2].Contract, true)
	putQuote.ApplyTick(eventmodels.QuoteFieldMark, 3.5, time.Now())

	var buf bytes.Buffer
	PrintChain(&buf, RunResult{
		Underlying: underlying,
		Mark:       1201.5,
		Chain:      chain,
		Straddle: &Straddle{
			Expiry: sep,
			Call:   &eventmodels.OptionLeg{Contract: chain[1], Quote: callQuote},
			Put:    &eventmodels.OptionLeg{Contract: chain[2], Quote: putQuote},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "AAPL mark: $1,201.50")
	assert.Contains(t, out, "Expiry 2024-09-20 (Friday), 2 contracts")
	assert.Contains(t, out, "Expiry 2024-10-18 (Friday), 1 contracts")
	assert.Contains(t, out, "AAPL  240920P00120000")
	assert.Contains(t, out, "ATM straddle 2024-09-20 120: $7.75")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("2024-09-20")), bytes.Index(buf.Bytes(), []byte("2024-10-18")))
}
