package eventpubsub

import (
	"fmt"

	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

// Bus is a named-topic event bus shared by the gateway transport and its consumers.
type Bus struct {
	bus EventBus.Bus
}

func NewBus() *Bus {
	return &Bus{
		bus: EventBus.New(),
	}
}

func (b *Bus) Publish(publisherName string, topic EventName, event interface{}) {
	log.Tracef("[%v] Published to topic %s", publisherName, topic)
	b.bus.Publish(string(topic), event)
}

// Subscribe runs callbackFn on the publisher's goroutine, in publish order.
func (b *Bus) Subscribe(subscriberName string, topic EventName, callbackFn interface{}) error {
	if err := b.bus.Subscribe(string(topic), callbackFn); err != nil {
		return fmt.Errorf("[%v] failed to subscribe to %s: %w", subscriberName, topic, err)
	}

	log.Debugf("[%v] Subscribed to topic %s", subscriberName, topic)
	return nil
}

func (b *Bus) Unsubscribe(subscriberName string, topic EventName, callbackFn interface{}) {
	if err := b.bus.Unsubscribe(string(topic), callbackFn); err != nil {
		log.Debugf("[%v] unsubscribe from %s: %v", subscriberName, topic, err)
	}
}

func (b *Bus) HasSubscribers(topic EventName) bool {
	return b.bus.HasCallback(string(topic))
}
