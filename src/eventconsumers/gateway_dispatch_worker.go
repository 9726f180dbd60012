package eventconsumers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/options-screener/src/eventmodels"
	"github.com/jiaming2012/options-screener/src/eventpubsub"
)

const gatewayDispatchInboxSize = 1024

type gatewayDispatchItem struct {
	msg           *eventmodels.GatewayMessage
	disconnectErr error
}

// GatewayDispatchWorker routes inbound gateway frames to the pending requests
// they answer. Frames are handled one at a time, in arrival order.
type GatewayDispatchWorker struct {
	wg         *sync.WaitGroup
	bus        *eventpubsub.Bus
	correlator *eventmodels.RequestCorrelator
	inbox      chan gatewayDispatchItem
	stopped    chan struct{}
	stopOnce   sync.Once
}

func (w *GatewayDispatchWorker) enqueue(item gatewayDispatchItem) {
	select {
	case w.inbox <- item:
	case <-w.stopped:
		log.Debugf("GatewayDispatchWorker: stopped, dropping frame")
	}
}

func (w *GatewayDispatchWorker) onMessage(msg *eventmodels.GatewayMessage) {
	w.enqueue(gatewayDispatchItem{msg: msg})
}

func (w *GatewayDispatchWorker) onDisconnect(err error) {
	w.enqueue(gatewayDispatchItem{disconnectErr: err})
}

func (w *GatewayDispatchWorker) dispatch(msg *eventmodels.GatewayMessage) {
	id, hasID, err := msg.RequestID()
	if err != nil {
		log.Warnf("GatewayDispatchWorker.dispatch: %v", err)
		return
	}

	if msg.Kind == eventmodels.GatewayMessageKindError {
		gatewayErr := &eventmodels.GatewayError{RequestID: id, Code: msg.Code, Message: msg.Message}

		if gatewayErr.IsBenign() {
			log.Debugf("GatewayDispatchWorker: ignoring gateway notice %d: %s", msg.Code, msg.Message)
			return
		}

		if !hasID {
			log.Warnf("GatewayDispatchWorker: gateway session notice %d: %s", msg.Code, msg.Message)
			return
		}

		if err := w.correlator.Fail(id, gatewayErr); err != nil {
			log.Debugf("GatewayDispatchWorker: discarding error %d for unknown request: %v", msg.Code, err)
		}

		return
	}

	if !hasID {
		log.Warnf("GatewayDispatchWorker: discarding %s frame without request id", msg.Kind)
		return
	}

	err = w.correlator.Update(id, func(payload interface{}) (interface{}, bool, error) {
		response, ok := payload.(eventmodels.GatewayResponse)
		if !ok {
			log.Errorf("GatewayDispatchWorker: request %s has no response accumulator", id)
			return payload, false, nil
		}

		complete, err := response.Apply(msg)
		return response, complete, err
	})

	if errors.Is(err, eventmodels.RequestNotFoundErr) {
		log.WithField("requestID", id).Debugf("GatewayDispatchWorker: discarding late or duplicate %s callback", msg.Kind)
	}
}

func (w *GatewayDispatchWorker) drain(err error) {
	n := w.correlator.Drain(err)
	log.Errorf("GatewayDispatchWorker: gateway disconnected, failed %d pending requests: %v", n, err)
}

func (w *GatewayDispatchWorker) stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		w.bus.Unsubscribe("GatewayDispatchWorker", eventpubsub.GatewayMessageEvent, w.onMessage)
		w.bus.Unsubscribe("GatewayDispatchWorker", eventpubsub.GatewayDisconnectedEvent, w.onDisconnect)
	})
}

// Start subscribes to the gateway topics and processes frames until ctx ends.
func (w *GatewayDispatchWorker) Start(ctx context.Context) error {
	if w.bus.HasSubscribers(eventpubsub.GatewayMessageEvent) {
		return fmt.Errorf("GatewayDispatchWorker.Start: %s already has a subscriber", eventpubsub.GatewayMessageEvent)
	}

	if err := w.bus.Subscribe("GatewayDispatchWorker", eventpubsub.GatewayMessageEvent, w.onMessage); err != nil {
		return err
	}

	if err := w.bus.Subscribe("GatewayDispatchWorker", eventpubsub.GatewayDisconnectedEvent, w.onDisconnect); err != nil {
		return err
	}

	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		defer w.stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("stopping GatewayDispatchWorker consumer")
				return
			case item := <-w.inbox:
				if item.msg != nil {
					w.dispatch(item.msg)
				} else {
					w.drain(item.disconnectErr)
				}
			}
		}
	}()

	return nil
}

func NewGatewayDispatchWorker(wg *sync.WaitGroup, bus *eventpubsub.Bus, correlator *eventmodels.RequestCorrelator) *GatewayDispatchWorker {
	return &GatewayDispatchWorker{
		wg:         wg,
		bus:        bus,
		correlator: correlator,
		inbox:      make(chan gatewayDispatchItem, gatewayDispatchInboxSize),
		stopped:    make(chan struct{}),
	}
}
