package eventmodels

import (
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"
)

type HistoricalSource string

const (
	HistoricalSourceGateway HistoricalSource = "gateway"
	HistoricalSourcePolygon HistoricalSource = "polygon"
)

type GatewayConfig struct {
	URL                  string        `yaml:"url"`
	PaperURL             string        `yaml:"paperUrl"`
	ClientID             int           `yaml:"clientId"`
	SessionToken         string        `yaml:"-"`
	ConnectTimeout       time.Duration `yaml:"connectTimeout"`
	RequestTimeout       time.Duration `yaml:"requestTimeout"`
	HistoricalTimeout    time.Duration `yaml:"historicalTimeout"`
	MaxRequestsPerSecond float64       `yaml:"maxRequestsPerSecond"`
}

type ChainConfig struct {
	Exchange            string `yaml:"exchange"`
	MinDTE              int    `yaml:"minDTE"`
	MaxDTE              int    `yaml:"maxDTE"`
	WeeklyToleranceDays int    `yaml:"weeklyToleranceDays"`
}

type HistoricalConfig struct {
	Source         HistoricalSource `yaml:"source"`
	LookbackYears  int              `yaml:"lookbackYears"`
	TopMoves       int              `yaml:"topMoves"`
	MinPercentMove float64          `yaml:"minPercentMove"`
	PolygonAPIKey  string           `yaml:"-"`
}

type ExpectedMoveConfig struct {
	StraddleMultiplier float64 `yaml:"straddleMultiplier"`
}

type SuitabilityConfig struct {
	MinPrice         float64 `yaml:"minPrice"`
	MaxSpreadPercent float64 `yaml:"maxSpreadPercent"`
	MinOptionSize    float64 `yaml:"minOptionSize"`
}

type ScreenerConfig struct {
	Gateway      GatewayConfig      `yaml:"gateway"`
	Chain        ChainConfig        `yaml:"chain"`
	Historical   HistoricalConfig   `yaml:"historical"`
	ExpectedMove ExpectedMoveConfig `yaml:"expectedMove"`
	Suitability  SuitabilityConfig  `yaml:"suitability"`
}

// DefaultStraddleMultiplier converts an ATM straddle price into a one
// standard deviation move.
var DefaultStraddleMultiplier = math.Sqrt(math.Pi / 2)

func NewDefaultScreenerConfig() *ScreenerConfig {
	return &ScreenerConfig{
		Gateway: GatewayConfig{
			URL:                  "ws://127.0.0.1:7496/ws",
			PaperURL:             "ws://127.0.0.1:7497/ws",
			ConnectTimeout:       10 * time.Second,
			RequestTimeout:       5 * time.Second,
			HistoricalTimeout:    120 * time.Second,
			MaxRequestsPerSecond: 40,
		},
		Chain: ChainConfig{
			Exchange:            "SMART",
			MinDTE:              90,
			MaxDTE:              120,
			WeeklyToleranceDays: 1,
		},
		Historical: HistoricalConfig{
			Source:        HistoricalSourceGateway,
			LookbackYears: 3,
			TopMoves:      14,
		},
		ExpectedMove: ExpectedMoveConfig{
			StraddleMultiplier: DefaultStraddleMultiplier,
		},
		Suitability: SuitabilityConfig{
			MinPrice: 40,
		},
	}
}

// ParseScreenerConfig overlays the yaml document on the defaults.
func ParseScreenerConfig(data []byte) (*ScreenerConfig, error) {
	cfg := NewDefaultScreenerConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ParseScreenerConfig: failed to unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GatewayURL picks the live or paper endpoint.
func (c *ScreenerConfig) GatewayURL(paper bool) string {
	if paper {
		return c.Gateway.PaperURL
	}

	return c.Gateway.URL
}

func (c *ScreenerConfig) Validate() error {
	if c.Gateway.URL == "" && c.Gateway.PaperURL == "" {
		return fmt.Errorf("ScreenerConfig: gateway url is required: %w", InvalidConfigErr)
	}

	if c.Gateway.ConnectTimeout <= 0 || c.Gateway.RequestTimeout <= 0 || c.Gateway.HistoricalTimeout <= 0 {
		return fmt.Errorf("ScreenerConfig: gateway timeouts must be positive: %w", InvalidConfigErr)
	}

	if c.Gateway.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("ScreenerConfig: gateway.maxRequestsPerSecond must not be negative: %w", InvalidConfigErr)
	}

	if c.Chain.MinDTE < 0 || c.Chain.MaxDTE < c.Chain.MinDTE {
		return fmt.Errorf("ScreenerConfig: invalid chain dte window [%d, %d]: %w", c.Chain.MinDTE, c.Chain.MaxDTE, InvalidConfigErr)
	}

	if c.Chain.WeeklyToleranceDays < 0 {
		return fmt.Errorf("ScreenerConfig: chain.weeklyToleranceDays must not be negative: %w", InvalidConfigErr)
	}

	switch c.Historical.Source {
	case HistoricalSourceGateway, HistoricalSourcePolygon:
	default:
		return fmt.Errorf("ScreenerConfig: unknown historical source %q: %w", c.Historical.Source, InvalidConfigErr)
	}

	if c.Historical.LookbackYears <= 0 {
		return fmt.Errorf("ScreenerConfig: historical.lookbackYears must be positive: %w", InvalidConfigErr)
	}

	if c.Historical.TopMoves <= 0 {
		return fmt.Errorf("ScreenerConfig: historical.topMoves must be positive: %w", InvalidConfigErr)
	}

	if c.Historical.MinPercentMove < 0 {
		return fmt.Errorf("ScreenerConfig: historical.minPercentMove must not be negative: %w", InvalidConfigErr)
	}

	if c.ExpectedMove.StraddleMultiplier <= 0 {
		return fmt.Errorf("ScreenerConfig: expectedMove.straddleMultiplier must be positive: %w", InvalidConfigErr)
	}

	if c.Suitability.MinPrice < 0 || c.Suitability.MaxSpreadPercent < 0 || c.Suitability.MinOptionSize < 0 {
		return fmt.Errorf("ScreenerConfig: suitability thresholds must not be negative: %w", InvalidConfigErr)
	}

	return nil
}
