package eventservices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/jiaming2012/options-screener/src/eventconsumers"
	"github.com/jiaming2012/options-screener/src/eventmodels"
	"github.com/jiaming2012/options-screener/src/eventpubsub"
)

const (
	stockGenericTicks  = "232"
	optionGenericTicks = "100,101,106,232"
)

// GatewayTransport carries request envelopes to the gateway. Inbound frames are
// published on the session's bus by the transport itself.
type GatewayTransport interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, req eventmodels.GatewayRequest) error
	Close() error
}

type GatewaySession struct {
	cfg        eventmodels.GatewayConfig
	transport  GatewayTransport
	bus        *eventpubsub.Bus
	correlator *eventmodels.RequestCorrelator
	limiter    *rate.Limiter
	clientID   int
	latency    metric.Float64Histogram

	mutex        sync.Mutex
	connected    bool
	broken       error
	cancelWorker context.CancelFunc
	wg           *sync.WaitGroup
}

func (s *GatewaySession) onDisconnect(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.connected {
		s.broken = err
	}
}

func (s *GatewaySession) Connect(ctx context.Context) error {
	s.mutex.Lock()
	if s.connected {
		s.mutex.Unlock()
		return nil
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	s.cancelWorker = cancel
	s.broken = nil
	s.mutex.Unlock()

	if err := s.connect(ctx, workerCtx); err != nil {
		s.teardown()
		return fmt.Errorf("GatewaySession.Connect: %v: %w", err, eventmodels.ConnectionErr)
	}

	s.mutex.Lock()
	s.connected = true
	s.mutex.Unlock()

	log.Infof("connected to gateway as client %d", s.clientID)
	return nil
}

func (s *GatewaySession) connect(ctx, workerCtx context.Context) error {
	worker := eventconsumers.NewGatewayDispatchWorker(s.wg, s.bus, s.correlator)
	if err := worker.Start(workerCtx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	if err := s.bus.Subscribe("GatewaySession", eventpubsub.GatewayDisconnectedEvent, s.onDisconnect); err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.cfg.ConnectTimeout

	operation := func() error {
		return s.transport.Connect(ctx)
	}

	notify := func(err error, next time.Duration) {
		log.Warnf("gateway connect failed, retrying in %v: %v", next, err)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	req, err := s.send(handshakeCtx, eventmodels.RequestKindHello, eventmodels.HelloParams{
		ClientID:     s.clientID,
		SessionToken: s.cfg.SessionToken,
	}, &eventmodels.HelloResponse{}, s.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	payload, err := s.Await(handshakeCtx, req)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	log.Debugf("gateway server version %d", payload.(*eventmodels.HelloResponse).ServerVersion)
	return nil
}

func (s *GatewaySession) teardown() {
	s.mutex.Lock()
	cancel := s.cancelWorker
	s.cancelWorker = nil
	s.connected = false
	s.mutex.Unlock()

	if cancel != nil {
		cancel()
	}

	s.wg.Wait()
	s.bus.Unsubscribe("GatewaySession", eventpubsub.GatewayDisconnectedEvent, s.onDisconnect)

	if err := s.transport.Close(); err != nil {
		log.Warnf("GatewaySession: failed to close transport: %v", err)
	}
}

// Disconnect fails every pending request with TimeoutErr, stops the
// dispatcher and closes the transport. Safe to call more than once.
func (s *GatewaySession) Disconnect() {
	s.mutex.Lock()
	active := s.connected || s.cancelWorker != nil
	s.mutex.Unlock()

	if !active {
		return
	}

	if n := s.correlator.Drain(eventmodels.TimeoutErr); n > 0 {
		log.Infof("GatewaySession: abandoned %d pending requests", n)
	}

	s.teardown()
	log.Info("disconnected from gateway")
}

func (s *GatewaySession) checkUsable() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.broken != nil {
		return fmt.Errorf("session is broken: %w", s.broken)
	}

	if s.cancelWorker == nil {
		return fmt.Errorf("session is not connected: %w", eventmodels.ConnectionErr)
	}

	return nil
}

func (s *GatewaySession) timeoutFor(kind eventmodels.RequestKind) time.Duration {
	if kind == eventmodels.RequestKindHistoricalData {
		return s.cfg.HistoricalTimeout
	}

	return s.cfg.RequestTimeout
}

// Send registers a pending request and writes it to the gateway. Frames
// answering the request are accumulated into response.
func (s *GatewaySession) Send(ctx context.Context, kind eventmodels.RequestKind, params interface{}, response eventmodels.GatewayResponse) (*eventmodels.PendingRequest, error) {
	return s.send(ctx, kind, params, response, s.timeoutFor(kind))
}

func (s *GatewaySession) send(ctx context.Context, kind eventmodels.RequestKind, params interface{}, response eventmodels.GatewayResponse, timeout time.Duration) (*eventmodels.PendingRequest, error) {
	if err := s.checkUsable(); err != nil {
		return nil, fmt.Errorf("GatewaySession.Send: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("GatewaySession.Send: %w", err)
	}

	req := s.correlator.Register(kind, timeout, response)

	log.WithFields(log.Fields{"requestID": req.ID, "kind": kind}).Debug("sending gateway request")

	if err := s.transport.Send(ctx, eventmodels.GatewayRequest{ID: req.ID, Kind: kind, Params: params}); err != nil {
		writeErr := fmt.Errorf("GatewaySession.Send: %v: %w", err, eventmodels.ConnectionErr)
		if failErr := s.correlator.Fail(req.ID, writeErr); failErr != nil {
			log.Debugf("GatewaySession.Send: %v", failErr)
		}

		return nil, writeErr
	}

	return req, nil
}

// sendCancel writes a fire-and-forget cancel for a streaming request.
func (s *GatewaySession) sendCancel(ctx context.Context, requestID uuid.UUID) {
	if err := s.checkUsable(); err != nil {
		return
	}

	req := eventmodels.GatewayRequest{
		ID:     uuid.New(),
		Kind:   eventmodels.RequestKindCancelMarketData,
		Params: eventmodels.CancelMarketDataParams{RequestID: requestID},
	}

	if err := s.transport.Send(ctx, req); err != nil {
		log.Warnf("GatewaySession: failed to cancel market data %s: %v", requestID, err)
	}
}

// Await blocks until req is fulfilled, fails, times out or ctx ends.
func (s *GatewaySession) Await(ctx context.Context, req *eventmodels.PendingRequest) (interface{}, error) {
	payload, err := req.Wait(ctx)

	if s.latency != nil {
		s.latency.Record(ctx, time.Since(req.IssuedAt).Seconds(), metric.WithAttributes(
			attribute.String("kind", string(req.Kind)),
			attribute.String("state", string(req.State())),
		))
	}

	return payload, err
}

func (s *GatewaySession) request(ctx context.Context, kind eventmodels.RequestKind, params interface{}, response eventmodels.GatewayResponse) (interface{}, error) {
	ctx, span := otel.Tracer("GatewaySession").Start(ctx, string(kind))
	defer span.End()

	req, err := s.Send(ctx, kind, params, response)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("requestID", req.ID.String()))

	payload, err := s.Await(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return payload, nil
}

func (s *GatewaySession) RequestContractDetails(ctx context.Context, params eventmodels.ContractDetailsParams) ([]*eventmodels.ContractDTO, error) {
	payload, err := s.request(ctx, eventmodels.RequestKindContractDetails, params, &eventmodels.ContractDetailsResponse{})
	if err != nil {
		return nil, fmt.Errorf("GatewaySession.RequestContractDetails: %s: %w", params.Symbol, err)
	}

	return payload.(*eventmodels.ContractDetailsResponse).Contracts, nil
}

func (s *GatewaySession) RequestOptionChain(ctx context.Context, params eventmodels.OptionChainParams) ([]*eventmodels.ContractDTO, error) {
	payload, err := s.request(ctx, eventmodels.RequestKindOptionChain, params, &eventmodels.ContractDetailsResponse{})
	if err != nil {
		return nil, fmt.Errorf("GatewaySession.RequestOptionChain: %s: %w", params.Symbol, err)
	}

	return payload.(*eventmodels.ContractDetailsResponse).Contracts, nil
}

// RequestMarketData streams until bid, ask and last arrive, then cancels the
// stream. A snapshot request completes on the first mark price.
func (s *GatewaySession) RequestMarketData(ctx context.Context, contract *eventmodels.Contract, streaming bool) (*eventmodels.Quote, error) {
	genericTicks := stockGenericTicks
	if contract.SecType == eventmodels.SecurityTypeOption {
		genericTicks = optionGenericTicks
	}

	exchange := contract.Exchange
	if exchange == "" {
		exchange = "SMART"
	}

	params := eventmodels.MarketDataParams{
		ConID:        contract.ConID,
		Symbol:       contract.Symbol.String(),
		SecType:      contract.SecType,
		Exchange:     exchange,
		Streaming:    streaming,
		GenericTicks: genericTicks,
	}

	ctx, span := otel.Tracer("GatewaySession").Start(ctx, string(eventmodels.RequestKindMarketData))
	defer span.End()

	span.SetAttributes(attribute.String("contract", contract.Key()), attribute.Bool("streaming", streaming))

	req, err := s.Send(ctx, eventmodels.RequestKindMarketData, params, &eventmodels.QuoteResponse{Quote: eventmodels.NewQuote(contract, !streaming)})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("GatewaySession.RequestMarketData: %s: %w", contract.Key(), err)
	}

	payload, err := s.Await(ctx, req)

	if streaming {
		s.sendCancel(ctx, req.ID)
	}

	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("GatewaySession.RequestMarketData: %s: %w", contract.Key(), err)
	}

	return payload.(*eventmodels.QuoteResponse).Quote, nil
}

func (s *GatewaySession) RequestHistoricalData(ctx context.Context, params eventmodels.HistoricalDataParams) ([]eventmodels.Candle, error) {
	payload, err := s.request(ctx, eventmodels.RequestKindHistoricalData, params, &eventmodels.HistoricalDataResponse{})
	if err != nil {
		return nil, fmt.Errorf("GatewaySession.RequestHistoricalData: %s: %w", params.Symbol, err)
	}

	return payload.(*eventmodels.HistoricalDataResponse).Candles, nil
}

func (s *GatewaySession) PendingRequests() int {
	return s.correlator.Len()
}

// IsFatal reports whether err means the session can no longer be used.
// Context errors are not fatal by themselves: callers check their own ctx.
func IsFatal(err error) bool {
	return errors.Is(err, eventmodels.ConnectionErr)
}

func newClientID(configured int) int {
	if configured > 0 {
		return configured
	}

	return int(time.Now().Unix()%1000) + 1
}

func NewGatewaySession(cfg eventmodels.GatewayConfig, transport GatewayTransport, bus *eventpubsub.Bus) *GatewaySession {
	limit := rate.Inf
	burst := 1
	if cfg.MaxRequestsPerSecond > 0 {
		limit = rate.Limit(cfg.MaxRequestsPerSecond)
		burst = int(cfg.MaxRequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	latency, err := otel.Meter("GatewaySession").Float64Histogram("gateway.request.duration", metric.WithUnit("s"), metric.WithDescription("gateway request round trip time"))
	if err != nil {
		log.Warnf("NewGatewaySession: failed to create latency histogram: %v", err)
	}

	return &GatewaySession{
		cfg:        cfg,
		transport:  transport,
		bus:        bus,
		correlator: eventmodels.NewRequestCorrelator(),
		limiter:    rate.NewLimiter(limit, burst),
		clientID:   newClientID(cfg.ClientID),
		latency:    latency,
		wg:         &sync.WaitGroup{},
	}
}
