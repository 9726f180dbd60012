package eventmodels

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GatewayRequest is the outbound envelope written to the gateway bridge.
type GatewayRequest struct {
	ID     uuid.UUID   `json:"id"`
	Kind   RequestKind `json:"kind"`
	Params interface{} `json:"params,omitempty"`
}

type HelloParams struct {
	ClientID     int    `json:"clientId"`
	SessionToken string `json:"sessionToken,omitempty"`
}

type ContractDetailsParams struct {
	Symbol   string       `json:"symbol"`
	SecType  SecurityType `json:"secType"`
	Exchange string       `json:"exchange"`
	Currency string       `json:"currency"`
}

type OptionChainParams struct {
	UnderlyingConID int64  `json:"underlyingConId"`
	Symbol          string `json:"symbol"`
	Exchange        string `json:"exchange"`
	MinExpiry       string `json:"minExpiry,omitempty"`
	MaxExpiry       string `json:"maxExpiry,omitempty"`
}

type MarketDataParams struct {
	ConID        int64        `json:"conId"`
	Symbol       string       `json:"symbol"`
	SecType      SecurityType `json:"secType"`
	Exchange     string       `json:"exchange"`
	Streaming    bool         `json:"streaming"`
	GenericTicks string       `json:"genericTicks,omitempty"`
}

type CancelMarketDataParams struct {
	RequestID uuid.UUID `json:"requestId"`
}

type HistoricalDataParams struct {
	ConID       int64  `json:"conId"`
	Symbol      string `json:"symbol"`
	EndDateTime string `json:"endDateTime"`
	Duration    string `json:"duration"`
	BarSize     string `json:"barSize"`
	WhatToShow  string `json:"whatToShow"`
	UseRTH      bool   `json:"useRTH"`
}

type GatewayMessageKind string

const (
	GatewayMessageKindHelloAck           GatewayMessageKind = "hello_ack"
	GatewayMessageKindContractDetails    GatewayMessageKind = "contract_details"
	GatewayMessageKindContractDetailsEnd GatewayMessageKind = "contract_details_end"
	GatewayMessageKindTickPrice          GatewayMessageKind = "tick_price"
	GatewayMessageKindTickSize           GatewayMessageKind = "tick_size"
	GatewayMessageKindTickOption         GatewayMessageKind = "tick_option"
	GatewayMessageKindSnapshotEnd        GatewayMessageKind = "snapshot_end"
	GatewayMessageKindHistoricalBar      GatewayMessageKind = "historical_bar"
	GatewayMessageKindHistoricalEnd      GatewayMessageKind = "historical_end"
	GatewayMessageKindError              GatewayMessageKind = "error"
)

// GatewayMessage is one inbound frame. Only the fields relevant to Kind are set.
type GatewayMessage struct {
	ID            string                `json:"id,omitempty"`
	Kind          GatewayMessageKind    `json:"kind"`
	ServerVersion int                   `json:"serverVersion,omitempty"`
	Contract      *ContractDTO          `json:"contract,omitempty"`
	Field         QuoteField            `json:"field,omitempty"`
	Value         *float64              `json:"value,omitempty"`
	Computation   *OptionComputationDTO `json:"computation,omitempty"`
	Bar           *BarDTO               `json:"bar,omitempty"`
	Code          int                   `json:"code,omitempty"`
	Message       string                `json:"message,omitempty"`
}

// RequestID returns the id of the request this frame answers. ok is false for
// session level frames.
func (m *GatewayMessage) RequestID() (id uuid.UUID, ok bool, err error) {
	if m.ID == "" {
		return uuid.Nil, false, nil
	}

	id, err = uuid.Parse(m.ID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("GatewayMessage: invalid id %q: %w", m.ID, err)
	}

	return id, true, nil
}

func (m *GatewayMessage) Validate() error {
	switch m.Kind {
	case GatewayMessageKindHelloAck, GatewayMessageKindContractDetailsEnd, GatewayMessageKindSnapshotEnd, GatewayMessageKindHistoricalEnd:
		return nil
	case GatewayMessageKindContractDetails:
		if m.Contract == nil {
			return fmt.Errorf("GatewayMessage: %s frame without contract", m.Kind)
		}
	case GatewayMessageKindTickPrice, GatewayMessageKindTickSize:
		if m.Field == "" || m.Value == nil {
			return fmt.Errorf("GatewayMessage: %s frame without field or value", m.Kind)
		}
	case GatewayMessageKindTickOption:
		if m.Computation == nil {
			return fmt.Errorf("GatewayMessage: %s frame without computation", m.Kind)
		}
	case GatewayMessageKindHistoricalBar:
		if m.Bar == nil {
			return fmt.Errorf("GatewayMessage: %s frame without bar", m.Kind)
		}
	case GatewayMessageKindError:
		if m.Code == 0 {
			return fmt.Errorf("GatewayMessage: error frame without code")
		}
	default:
		return fmt.Errorf("GatewayMessage: unknown kind %q", m.Kind)
	}

	return nil
}

type ContractDTO struct {
	ConID       int64           `json:"conId"`
	Symbol      string          `json:"symbol"`
	LocalSymbol string          `json:"localSymbol,omitempty"`
	SecType     SecurityType    `json:"secType"`
	Exchange    string          `json:"exchange,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	Strike      decimal.Decimal `json:"strike,omitempty"`
	Right       string          `json:"right,omitempty"`
	Expiry      string          `json:"lastTradeDateOrContractMonth,omitempty"`
	Multiplier  string          `json:"multiplier,omitempty"`
}

func (dto *ContractDTO) ToContract() (*Contract, error) {
	if dto.ConID <= 0 {
		return nil, fmt.Errorf("ContractDTO: invalid conId %d", dto.ConID)
	}

	symbol := NewStockSymbol(dto.Symbol)
	if err := symbol.Validate(); err != nil {
		return nil, fmt.Errorf("ContractDTO: %w", err)
	}

	if err := dto.SecType.Validate(); err != nil {
		return nil, fmt.Errorf("ContractDTO: %w", err)
	}

	return &Contract{
		ConID:       dto.ConID,
		Symbol:      symbol,
		LocalSymbol: strings.TrimSpace(dto.LocalSymbol),
		SecType:     dto.SecType,
		Exchange:    dto.Exchange,
		Currency:    dto.Currency,
	}, nil
}

func (dto *ContractDTO) ToOptionContract(underlying *Contract) (*OptionContract, error) {
	contract, err := dto.ToContract()
	if err != nil {
		return nil, err
	}

	if contract.SecType != SecurityTypeOption {
		return nil, fmt.Errorf("ContractDTO: expected %s, found %s", SecurityTypeOption, contract.SecType)
	}

	if !dto.Strike.IsPositive() {
		return nil, fmt.Errorf("ContractDTO: invalid strike %s for %s", dto.Strike, contract.Key())
	}

	right, err := ParseOptionRight(dto.Right)
	if err != nil {
		return nil, fmt.Errorf("ContractDTO: %w", err)
	}

	if len(dto.Expiry) < 8 {
		return nil, fmt.Errorf("ContractDTO: invalid expiry %q for %s", dto.Expiry, contract.Key())
	}

	expiry, err := ParseGatewayDate(dto.Expiry)
	if err != nil {
		return nil, fmt.Errorf("ContractDTO: invalid expiry %q: %w", dto.Expiry, err)
	}

	multiplier := 100
	if dto.Multiplier != "" {
		multiplier, err = strconv.Atoi(dto.Multiplier)
		if err != nil || multiplier <= 0 {
			return nil, fmt.Errorf("ContractDTO: invalid multiplier %q", dto.Multiplier)
		}
	}

	return &OptionContract{
		Contract:   *contract,
		Underlying: underlying,
		Strike:     dto.Strike,
		Expiry:     expiry,
		Right:      right,
		Multiplier: multiplier,
	}, nil
}

type OptionComputationDTO struct {
	ImpliedVolatility float64 `json:"impliedVol"`
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Vega              float64 `json:"vega"`
	Theta             float64 `json:"theta"`
}

func (dto *OptionComputationDTO) ToOptionComputation() OptionComputation {
	return OptionComputation{
		ImpliedVolatility: dto.ImpliedVolatility,
		Delta:             dto.Delta,
		Gamma:             dto.Gamma,
		Vega:              dto.Vega,
		Theta:             dto.Theta,
	}
}

type BarDTO struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

func (dto *BarDTO) ToCandle() (Candle, error) {
	date, err := ParseGatewayDate(dto.Date)
	if err != nil {
		return Candle{}, fmt.Errorf("BarDTO: invalid date %q: %w", dto.Date, err)
	}

	return Candle{
		Date:  date,
		Open:  dto.Open,
		High:  dto.High,
		Low:   dto.Low,
		Close: dto.Close,
	}, nil
}
