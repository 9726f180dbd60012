package eventservices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jiaming2012/options-screener/src/eventmodels"
	"github.com/jiaming2012/options-screener/src/eventpubsub"
)

type fakeResponder func(req eventmodels.GatewayRequest) []*eventmodels.GatewayMessage

// fakeGateway answers requests synchronously by publishing frames on the bus,
// the way the websocket transport does.
type fakeGateway struct {
	bus *eventpubsub.Bus

	mutex        sync.Mutex
	failConnects int
	failSends    bool
	connects     int
	closed       int
	sent         []eventmodels.GatewayRequest
	responders   map[eventmodels.RequestKind]fakeResponder
}

func (g *fakeGateway) Connect(ctx context.Context) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.connects++
	if g.connects <= g.failConnects {
		return fmt.Errorf("connection refused")
	}

	return nil
}

func (g *fakeGateway) Send(ctx context.Context, req eventmodels.GatewayRequest) error {
	g.mutex.Lock()
	if g.failSends {
		g.mutex.Unlock()
		return fmt.Errorf("broken pipe")
	}

	g.sent = append(g.sent, req)
	responder := g.responders[req.Kind]
	g.mutex.Unlock()

	if responder == nil {
		return nil
	}

	for _, msg := range responder(req) {
		if msg.ID == "" {
			msg.ID = req.ID.String()
		}

		g.bus.Publish("fakeGateway", eventpubsub.GatewayMessageEvent, msg)
	}

	return nil
}

func (g *fakeGateway) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.closed++
	return nil
}

func (g *fakeGateway) on(kind eventmodels.RequestKind, responder fakeResponder) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.responders[kind] = responder
}

func (g *fakeGateway) sentOf(kind eventmodels.RequestKind) []eventmodels.GatewayRequest {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	var out []eventmodels.GatewayRequest
	for _, req := range g.sent {
		if req.Kind == kind {
			out = append(out, req)
		}
	}

	return out
}

func (g *fakeGateway) disconnect() {
	g.bus.Publish("fakeGateway", eventpubsub.GatewayDisconnectedEvent, fmt.Errorf("read tcp: connection reset: %w", eventmodels.ConnectionErr))
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{
		bus:        eventpubsub.NewBus(),
		responders: make(map[eventmodels.RequestKind]fakeResponder),
	}

	g.on(eventmodels.RequestKindHello, func(req eventmodels.GatewayRequest) []*eventmodels.GatewayMessage {
		return []*eventmodels.GatewayMessage{{Kind: eventmodels.GatewayMessageKindHelloAck, ServerVersion: 176}}
	})

	return g
}

func testGatewayConfig() eventmodels.GatewayConfig {
	return eventmodels.GatewayConfig{
		URL:               "ws://fake",
		ClientID:          7,
		ConnectTimeout:    5 * time.Second,
		RequestTimeout:    100 * time.Millisecond,
		HistoricalTimeout: 200 * time.Millisecond,
	}
}

func newConnectedSession(g *fakeGateway) (*GatewaySession, error) {
	session := NewGatewaySession(testGatewayConfig(), g, g.bus)
	if err := session.Connect(context.Background()); err != nil {
		return nil, err
	}

	return session, nil
}

func float64Ptr(v float64) *float64 {
	return &v
}

func tick(field eventmodels.QuoteField, v float64) *eventmodels.GatewayMessage {
	return &eventmodels.GatewayMessage{Kind: eventmodels.GatewayMessageKindTickPrice, Field: field, Value: float64Ptr(v)}
}

func stockDTO(conID int64, symbol string) *eventmodels.ContractDTO {
	return &eventmodels.ContractDTO{ConID: conID, Symbol: symbol, SecType: eventmodels.SecurityTypeStock, Exchange: "SMART", Currency: "USD"}
}

func optionDTO(conID int64, symbol string, strike float64, right string, expiry time.Time) *eventmodels.ContractDTO {
	return &eventmodels.ContractDTO{
		ConID:       conID,
		Symbol:      symbol,
		LocalSymbol: fmt.Sprintf("%s %s%s%v", symbol, expiry.Format("060102"), right, strike),
		SecType:     eventmodels.SecurityTypeOption,
		Exchange:    "SMART",
		Currency:    "USD",
		Strike:      decimal.NewFromFloat(strike),
		Right:       right,
		Expiry:      expiry.Format("20060102"),
		Multiplier:  "100",
	}
}

func contractFrames(dtos ...*eventmodels.ContractDTO) []*eventmodels.GatewayMessage {
	var frames []*eventmodels.GatewayMessage
	for _, dto := range dtos {
		frames = append(frames, &eventmodels.GatewayMessage{Kind: eventmodels.GatewayMessageKindContractDetails, Contract: dto})
	}

	return append(frames, &eventmodels.GatewayMessage{Kind: eventmodels.GatewayMessageKindContractDetailsEnd})
}
