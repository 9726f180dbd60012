package eventservices

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

type ContractDetailsRequester interface {
	RequestContractDetails(ctx context.Context, params eventmodels.ContractDetailsParams) ([]*eventmodels.ContractDTO, error)
}

// ContractResolver maps tickers to gateway contracts. Results are cached for
// the lifetime of the resolver.
type ContractResolver struct {
	requester ContractDetailsRequester
	mutex     sync.Mutex
	cache     map[eventmodels.StockSymbol]*eventmodels.Contract
}

func (r *ContractResolver) lookup(symbol eventmodels.StockSymbol) (*eventmodels.Contract, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c, found := r.cache[symbol]
	return c, found
}

func (r *ContractResolver) Resolve(ctx context.Context, symbol eventmodels.StockSymbol) (*eventmodels.Contract, error) {
	if err := symbol.Validate(); err != nil {
		return nil, fmt.Errorf("ContractResolver.Resolve: %w", err)
	}

	if c, found := r.lookup(symbol); found {
		return c, nil
	}

	dtos, err := r.requester.RequestContractDetails(ctx, eventmodels.NewStockContractDetailsParams(symbol))
	if err != nil {
		return nil, fmt.Errorf("ContractResolver.Resolve: %w", err)
	}

	if len(dtos) == 0 {
		return nil, fmt.Errorf("ContractResolver.Resolve: no contract found for %s: %w", symbol, eventmodels.NoDataErr)
	}

	if len(dtos) > 1 {
		return nil, fmt.Errorf("ContractResolver.Resolve: %d ambiguous contracts found for %s: %w", len(dtos), symbol, eventmodels.NoDataErr)
	}

	contract, err := dtos[0].ToContract()
	if err != nil {
		return nil, fmt.Errorf("ContractResolver.Resolve: %v: %w", err, eventmodels.NoDataErr)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// a concurrent resolve may have won
	if c, found := r.cache[symbol]; found {
		return c, nil
	}

	r.cache[symbol] = contract

	log.WithField("symbol", symbol).Debugf("resolved %s", contract)
	return contract, nil
}

func NewContractResolver(requester ContractDetailsRequester) *ContractResolver {
	return &ContractResolver{
		requester: requester,
		cache:     make(map[eventmodels.StockSymbol]*eventmodels.Contract),
	}
}
