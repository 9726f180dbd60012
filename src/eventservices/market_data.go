package eventservices

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

type MarketDataRequester interface {
	RequestMarketData(ctx context.Context, contract *eventmodels.Contract, streaming bool) (*eventmodels.Quote, error)
}

// MarketDataSnapshot captures quotes. During regular trading hours it streams
// until bid, ask and last arrive; otherwise it takes a mark-only snapshot.
type MarketDataSnapshot struct {
	requester MarketDataRequester
}

func (m *MarketDataSnapshot) Quote(ctx context.Context, contract *eventmodels.Contract, liveHours bool) (*eventmodels.Quote, error) {
	quote, err := m.requester.RequestMarketData(ctx, contract, liveHours)
	if err != nil {
		return nil, fmt.Errorf("MarketDataSnapshot.Quote: %w", err)
	}

	log.WithField("contract", contract.Key()).Debugf("quote: %s", quote)

	return quote, nil
}

func (m *MarketDataSnapshot) OptionQuote(ctx context.Context, option *eventmodels.OptionContract, liveHours bool) (*eventmodels.Quote, error) {
	return m.Quote(ctx, &option.Contract, liveHours)
}

func NewMarketDataSnapshot(requester MarketDataRequester) *MarketDataSnapshot {
	return &MarketDataSnapshot{
		requester: requester,
	}
}
