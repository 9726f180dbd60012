package eventmodels

import (
	"encoding/json"
	"fmt"
	"strings"
)

type StockSymbol string

func (s StockSymbol) String() string {
	return strings.ToUpper(string(s))
}

func (s StockSymbol) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s StockSymbol) Validate() error {
	if strings.TrimSpace(string(s)) == "" {
		return fmt.Errorf("StockSymbol: symbol is empty: %w", InvalidSymbolErr)
	}

	if strings.ContainsAny(string(s), " ,;\t") {
		return fmt.Errorf("StockSymbol: %q: %w", string(s), InvalidSymbolErr)
	}

	return nil
}

func NewStockSymbol(s string) StockSymbol {
	return StockSymbol(strings.ToUpper(strings.TrimSpace(s)))
}
