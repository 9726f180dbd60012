package eventmodels

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// GatewayResponse accumulates the frames answering one request. Apply reports
// complete once the response is whole.
type GatewayResponse interface {
	Apply(msg *GatewayMessage) (complete bool, err error)
}

type HelloResponse struct {
	ServerVersion int
}

func (r *HelloResponse) Apply(msg *GatewayMessage) (bool, error) {
	if msg.Kind != GatewayMessageKindHelloAck {
		return ignoreFrame(msg)
	}

	r.ServerVersion = msg.ServerVersion
	return true, nil
}

// ContractDetailsResponse collects contract_details frames until contract_details_end.
// Option chains arrive the same way.
type ContractDetailsResponse struct {
	Contracts []*ContractDTO
}

func (r *ContractDetailsResponse) Apply(msg *GatewayMessage) (bool, error) {
	switch msg.Kind {
	case GatewayMessageKindContractDetails:
		r.Contracts = append(r.Contracts, msg.Contract)
		return false, nil
	case GatewayMessageKindContractDetailsEnd:
		return true, nil
	default:
		return ignoreFrame(msg)
	}
}

type QuoteResponse struct {
	Quote *Quote
}

func (r *QuoteResponse) Apply(msg *GatewayMessage) (bool, error) {
	now := time.Now()

	switch msg.Kind {
	case GatewayMessageKindTickPrice, GatewayMessageKindTickSize:
		r.Quote.ApplyTick(msg.Field, *msg.Value, now)
	case GatewayMessageKindTickOption:
		r.Quote.ApplyComputation(msg.Computation.ToOptionComputation(), now)
	case GatewayMessageKindSnapshotEnd:
		if !r.Quote.IsComplete() {
			return false, fmt.Errorf("snapshot for %s ended without a price (%s): %w", r.Quote.Key, r.Quote, NoDataErr)
		}

		return true, nil
	default:
		return ignoreFrame(msg)
	}

	return r.Quote.IsComplete(), nil
}

type HistoricalDataResponse struct {
	Candles []Candle
}

func (r *HistoricalDataResponse) Apply(msg *GatewayMessage) (bool, error) {
	switch msg.Kind {
	case GatewayMessageKindHistoricalBar:
		candle, err := msg.Bar.ToCandle()
		if err != nil {
			return false, fmt.Errorf("%v: %w", err, NoDataErr)
		}

		r.Candles = append(r.Candles, candle)
		return false, nil
	case GatewayMessageKindHistoricalEnd:
		return true, nil
	default:
		return ignoreFrame(msg)
	}
}

func ignoreFrame(msg *GatewayMessage) (bool, error) {
	log.Warnf("GatewayResponse: ignoring unexpected %s frame for request %s", msg.Kind, msg.ID)
	return false, nil
}
