package eventmodels

import "fmt"

type SecurityType string

const (
	SecurityTypeStock  SecurityType = "STK"
	SecurityTypeOption SecurityType = "OPT"
	SecurityTypeIndex  SecurityType = "IND"
)

func (t SecurityType) Validate() error {
	if t != SecurityTypeStock && t != SecurityTypeOption && t != SecurityTypeIndex {
		return fmt.Errorf("SecurityType: Validate: invalid security type: %s", t)
	}

	return nil
}

// Contract is a gateway instrument resolved to its gateway assigned ConID.
type Contract struct {
	ConID       int64
	Symbol      StockSymbol
	LocalSymbol string
	SecType     SecurityType
	Exchange    string
	Currency    string
}

// Key is the label used for quotes and logging: the local symbol when the
// gateway sent one, otherwise the ticker.
func (c *Contract) Key() string {
	if c.LocalSymbol != "" {
		return c.LocalSymbol
	}

	return c.Symbol.String()
}

func (c *Contract) String() string {
	return fmt.Sprintf("%s %s (conid %d, %s/%s)", c.SecType, c.Key(), c.ConID, c.Exchange, c.Currency)
}

func NewStockContractDetailsParams(symbol StockSymbol) ContractDetailsParams {
	return ContractDetailsParams{
		Symbol:   symbol.String(),
		SecType:  SecurityTypeStock,
		Exchange: "SMART",
		Currency: "USD",
	}
}
