package worker

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/options-screener/src/eventmodels"
	"github.com/jiaming2012/options-screener/src/eventpubsub"
)

const writeTimeout = 10 * time.Second

// IBGatewayTransport is the websocket connection to the gateway bridge.
// Inbound frames are published on the bus; outbound requests are written
// as JSON envelopes.
type IBGatewayTransport struct {
	url    string
	bus    *eventpubsub.Bus
	dialer websocket.Dialer

	mutex   sync.Mutex
	conn    *websocket.Conn
	closing bool
	done    chan struct{}
}

func (t *IBGatewayTransport) Connect(ctx context.Context) error {
	u, err := url.Parse(t.url)
	if err != nil {
		return fmt.Errorf("IBGatewayTransport.Connect: invalid url %q: %w", t.url, err)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.conn != nil {
		return fmt.Errorf("IBGatewayTransport.Connect: already connected")
	}

	log.Infof("connecting to %s", u.String())

	c, _, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("IBGatewayTransport.Connect: dial failed: %w", err)
	}

	if c == nil {
		return fmt.Errorf("IBGatewayTransport.Connect: connection is nil")
	}

	t.conn = c
	t.closing = false
	t.done = make(chan struct{})

	go t.readLoop(c, t.done)

	return nil
}

func (t *IBGatewayTransport) Send(ctx context.Context, req eventmodels.GatewayRequest) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.conn == nil || t.closing {
		return fmt.Errorf("IBGatewayTransport.Send: not connected: %w", eventmodels.ConnectionErr)
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("IBGatewayTransport.Send: %v: %w", err, eventmodels.ConnectionErr)
	}

	if err := t.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("IBGatewayTransport.Send: failed to write %s request: %v: %w", req.Kind, err, eventmodels.ConnectionErr)
	}

	return nil
}

// Close shuts the connection and waits for the read loop to exit.
func (t *IBGatewayTransport) Close() error {
	t.mutex.Lock()
	if t.conn == nil {
		t.mutex.Unlock()
		return nil
	}

	t.closing = true
	c := t.conn
	done := t.done

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Debugf("IBGatewayTransport.Close: failed to write close frame: %v", err)
	}

	err := c.Close()
	t.conn = nil
	t.mutex.Unlock()

	<-done

	if err != nil {
		return fmt.Errorf("IBGatewayTransport.Close: %w", err)
	}

	return nil
}

func (t *IBGatewayTransport) isClosing() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.closing
}

func (t *IBGatewayTransport) readLoop(c *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if t.isClosing() {
				log.Debug("IBGatewayTransport: read loop stopped")
				return
			}

			log.Errorf("IBGatewayTransport: ReadMessage(): %v", err)

			t.mutex.Lock()
			if t.conn == c {
				t.conn = nil
			}
			t.mutex.Unlock()

			c.Close()

			t.bus.Publish("IBGatewayTransport", eventpubsub.GatewayDisconnectedEvent, fmt.Errorf("gateway read failed: %v: %w", err, eventmodels.ConnectionErr))
			return
		}

		var msg eventmodels.GatewayMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Errorf("IBGatewayTransport: failed to unmarshal message: %v", err)
			continue
		}

		if err := msg.Validate(); err != nil {
			log.Warnf("IBGatewayTransport: discarding frame: %v", err)
			continue
		}

		t.bus.Publish("IBGatewayTransport", eventpubsub.GatewayMessageEvent, &msg)
	}
}

func NewIBGatewayTransport(urlStr string, bus *eventpubsub.Bus) *IBGatewayTransport {
	// allow the self signed certificate of a local gateway
	dialer := *websocket.DefaultDialer
	dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &IBGatewayTransport{
		url:    urlStr,
		bus:    bus,
		dialer: dialer,
	}
}
