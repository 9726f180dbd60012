package eventmodels

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestCorrelator matches asynchronous gateway callbacks to the requests that
// caused them.
type RequestCorrelator struct {
	mutex   sync.Mutex
	pending map[uuid.UUID]*PendingRequest
}

// UpdateFunc receives the accumulated payload of a request and returns the
// next payload. Returning complete fulfills the request; returning an error
// fails it.
type UpdateFunc func(payload interface{}) (next interface{}, complete bool, err error)

// Register creates a pending request with a fresh id. The request times out
// with TimeoutErr when nothing resolves it within timeout.
func (c *RequestCorrelator) Register(kind RequestKind, timeout time.Duration, initial interface{}) *PendingRequest {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	req := newPendingRequest(kind, timeout, initial)
	for {
		if _, found := c.pending[req.ID]; !found {
			break
		}

		req.ID = uuid.New()
	}

	c.pending[req.ID] = req

	id := req.ID
	req.timer = time.AfterFunc(timeout, func() {
		c.expire(id)
	})

	return req
}

func (c *RequestCorrelator) expire(id uuid.UUID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	req, found := c.pending[id]
	if !found {
		return
	}

	delete(c.pending, id)
	req.resolve(PendingRequestStateTimedOut, nil, NewRequestError(id, fmt.Errorf("%s request: %w", req.Kind, TimeoutErr)))
}

// Update applies fn to the payload of a pending request.
func (c *RequestCorrelator) Update(id uuid.UUID, fn UpdateFunc) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	req, found := c.pending[id]
	if !found {
		return fmt.Errorf("RequestCorrelator.Update: %s: %w", id, RequestNotFoundErr)
	}

	next, complete, err := fn(req.currentPayload())
	if err != nil {
		delete(c.pending, id)
		req.resolve(PendingRequestStateErrored, nil, NewRequestError(id, err))
		return nil
	}

	if complete {
		delete(c.pending, id)
		req.resolve(PendingRequestStateFulfilled, next, nil)
		return nil
	}

	req.setPayload(next)
	return nil
}

// Fulfill resolves a pending request with payload.
func (c *RequestCorrelator) Fulfill(id uuid.UUID, payload interface{}) error {
	return c.Update(id, func(interface{}) (interface{}, bool, error) {
		return payload, true, nil
	})
}

// Fail resolves a pending request with err.
func (c *RequestCorrelator) Fail(id uuid.UUID, err error) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	req, found := c.pending[id]
	if !found {
		return fmt.Errorf("RequestCorrelator.Fail: %s: %w", id, RequestNotFoundErr)
	}

	delete(c.pending, id)
	req.resolve(PendingRequestStateErrored, nil, NewRequestError(id, err))
	return nil
}

// Drain fails every pending request with err and returns how many there were.
func (c *RequestCorrelator) Drain(err error) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n := len(c.pending)
	for id, req := range c.pending {
		delete(c.pending, id)

		state := PendingRequestStateErrored
		if err == TimeoutErr {
			state = PendingRequestStateTimedOut
		}

		req.resolve(state, nil, NewRequestError(id, fmt.Errorf("%s request: %w", req.Kind, err)))
	}

	return n
}

func (c *RequestCorrelator) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.pending)
}

func NewRequestCorrelator() *RequestCorrelator {
	return &RequestCorrelator{
		pending: make(map[uuid.UUID]*PendingRequest),
	}
}
