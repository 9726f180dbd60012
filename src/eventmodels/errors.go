package eventmodels

import (
	"fmt"

	"github.com/google/uuid"
)

var ConnectionErr = fmt.Errorf("gateway connection error")
var TimeoutErr = fmt.Errorf("request timed out")
var NoDataErr = fmt.Errorf("no data")
var RequestNotFoundErr = fmt.Errorf("request not found")
var InvalidConfigErr = fmt.Errorf("invalid config")
var InvalidSymbolErr = fmt.Errorf("invalid symbol")

// GatewayError is an error frame sent by the gateway for a specific request.
type GatewayError struct {
	RequestID uuid.UUID
	Code      int
	Message   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
}

// Unwrap classifies well known gateway codes so callers can use errors.Is.
func (e *GatewayError) Unwrap() error {
	switch e.Code {
	case 162, 200, 354, 10090, 10167, 10168:
		return NoDataErr
	case 502, 504, 1100, 1300:
		return ConnectionErr
	default:
		return nil
	}
}

// IsBenign reports whether the code is informational and must not fail a request.
func (e *GatewayError) IsBenign() bool {
	switch e.Code {
	case 366, 2104, 2106, 2107, 2108, 2158, 2176:
		return true
	default:
		return false
	}
}
