package eventmodels

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type RequestKind string

const (
	RequestKindHello            RequestKind = "hello"
	RequestKindContractDetails  RequestKind = "contract_details"
	RequestKindOptionChain      RequestKind = "option_chain"
	RequestKindMarketData       RequestKind = "market_data"
	RequestKindCancelMarketData RequestKind = "cancel_market_data"
	RequestKindHistoricalData   RequestKind = "historical_data"
)

type PendingRequestState string

const (
	PendingRequestStatePending   PendingRequestState = "pending"
	PendingRequestStateFulfilled PendingRequestState = "fulfilled"
	PendingRequestStateTimedOut  PendingRequestState = "timed_out"
	PendingRequestStateErrored   PendingRequestState = "errored"
)

// PendingRequest is an outstanding gateway request. It resolves exactly once;
// Done is closed on resolution.
type PendingRequest struct {
	ID       uuid.UUID
	Kind     RequestKind
	IssuedAt time.Time
	Deadline time.Time

	mutex   sync.Mutex
	state   PendingRequestState
	payload interface{}
	err     error
	done    chan struct{}
	timer   *time.Timer
}

func newPendingRequest(kind RequestKind, timeout time.Duration, initial interface{}) *PendingRequest {
	now := time.Now()
	return &PendingRequest{
		ID:       uuid.New(),
		Kind:     kind,
		IssuedAt: now,
		Deadline: now.Add(timeout),
		state:    PendingRequestStatePending,
		payload:  initial,
		done:     make(chan struct{}),
	}
}

func (r *PendingRequest) State() PendingRequestState {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.state
}

func (r *PendingRequest) Done() <-chan struct{} {
	return r.done
}

// Result returns the payload and error once resolved.
func (r *PendingRequest) Result() (interface{}, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.payload, r.err
}

// Wait blocks until the request resolves or ctx ends.
func (r *PendingRequest) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-r.done:
		return r.Result()
	case <-ctx.Done():
		return nil, NewRequestError(r.ID, ctx.Err())
	}
}

// resolve must be called with the correlator mutex held.
func (r *PendingRequest) resolve(state PendingRequestState, payload interface{}, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state != PendingRequestStatePending {
		return
	}

	if r.timer != nil {
		r.timer.Stop()
	}

	r.state = state
	r.payload = payload
	r.err = err
	close(r.done)
}

func (r *PendingRequest) currentPayload() interface{} {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.payload
}

func (r *PendingRequest) setPayload(payload interface{}) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.payload = payload
}
