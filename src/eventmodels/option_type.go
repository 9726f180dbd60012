package eventmodels

import (
	"fmt"
	"strings"
)

type OptionRight string

const (
	OptionRightCall OptionRight = "call"
	OptionRightPut  OptionRight = "put"
)

func (o OptionRight) Validate() error {
	if o != OptionRightCall && o != OptionRightPut {
		return fmt.Errorf("OptionRight: Validate: invalid option right: %s", o)
	}

	return nil
}

// Short returns the single letter used on the gateway wire.
func (o OptionRight) Short() string {
	if o == OptionRightCall {
		return "C"
	}

	return "P"
}

func ParseOptionRight(s string) (OptionRight, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CALL":
		return OptionRightCall, nil
	case "P", "PUT":
		return OptionRightPut, nil
	default:
		return "", fmt.Errorf("ParseOptionRight: invalid option right: %q", s)
	}
}
