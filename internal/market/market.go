// Package market defines the indicator dataset contract and the
// collaborator interfaces for data retrieval and technical scoring.
package market

import (
	"context"
	"fmt"
)

// Type identifies the market a ticker trades in.
type Type string

const (
	TypeA   Type = "A"
	TypeUS  Type = "US"
	TypeHK  Type = "HK"
	TypeETF Type = "ETF"
	TypeLOF Type = "LOF"
)

// IsFund reports whether the market type is a fund listing.
func (t Type) IsFund() bool {
	return t == TypeETF || t == TypeLOF
}

// ParseType maps a request string to a market type, defaulting to A shares.
func ParseType(s string) Type {
	switch Type(s) {
	case TypeUS, TypeHK, TypeETF, TypeLOF:
		return Type(s)
	default:
		return TypeA
	}
}

// Row is one day of OHLCV data augmented with computed indicators.
// The JSON field names match the wire format consumed by chart clients.
type Row struct {
	Date        string  `json:"date"`
	Open        float64 `json:"Open"`
	High        float64 `json:"High"`
	Low         float64 `json:"Low"`
	Close       float64 `json:"Close"`
	Volume      float64 `json:"Volume"`
	Change      float64 `json:"Change"`
	MA5         float64 `json:"MA5"`
	MA20        float64 `json:"MA20"`
	RSI         float64 `json:"RSI"`
	MACD        float64 `json:"MACD"`
	MACDSignal  float64 `json:"MACD_Signal"`
	Volatility  float64 `json:"Volatility"`
	VolumeRatio float64 `json:"Volume_Ratio"`
}

// Dataset is an ordered time series of indicator rows, oldest first.
type Dataset struct {
	StockCode string
	Market    Type
	Rows      []Row
}

// Tail returns the trailing n rows. If n exceeds the series length the
// whole series is returned.
func (d *Dataset) Tail(n int) []Row {
	if n <= 0 || n >= len(d.Rows) {
		return d.Rows
	}
	return d.Rows[len(d.Rows)-n:]
}

// Latest returns the most recent row.
func (d *Dataset) Latest() Row {
	if len(d.Rows) == 0 {
		return Row{}
	}
	return d.Rows[len(d.Rows)-1]
}

// Snapshot captures the classifications derived from the latest row.
type Snapshot struct {
	Price       float64
	PriceChange float64
	RSI         float64
	MATrend     string // UP | DOWN
	MACDSignal  string // BUY | SELL
	VolumeState string // HIGH | LOW | NORMAL
}

// Snapshot derives the classification snapshot from the latest row.
func (d *Dataset) Snapshot() Snapshot {
	row := d.Latest()

	maTrend := "DOWN"
	if row.MA5 > row.MA20 {
		maTrend = "UP"
	}

	macdSignal := "SELL"
	if row.MACD > row.MACDSignal {
		macdSignal = "BUY"
	}

	volumeState := "NORMAL"
	if row.VolumeRatio > 1.5 {
		volumeState = "HIGH"
	} else if row.VolumeRatio < 0.5 {
		volumeState = "LOW"
	}

	return Snapshot{
		Price:       row.Close,
		PriceChange: row.Change,
		RSI:         row.RSI,
		MATrend:     maTrend,
		MACDSignal:  macdSignal,
		VolumeState: volumeState,
	}
}

// Summary is the compact technical digest fed into prompts and the
// heuristic analysis score.
type Summary struct {
	Trend       string // upward | downward
	Volatility  string // formatted "x.xx%"
	VolumeTrend string // increasing | decreasing
	RSILevel    float64
}

// Summary derives the technical summary from the latest row.
func (d *Dataset) Summary() Summary {
	row := d.Latest()

	trend := "downward"
	if row.MA5 > row.MA20 {
		trend = "upward"
	}

	volumeTrend := "decreasing"
	if row.VolumeRatio > 1 {
		volumeTrend = "increasing"
	}

	return Summary{
		Trend:       trend,
		Volatility:  fmt.Sprintf("%.2f%%", row.Volatility),
		VolumeTrend: volumeTrend,
		RSILevel:    row.RSI,
	}
}

// String renders the summary the way it appears inside prompts.
func (s Summary) String() string {
	return fmt.Sprintf("{'trend': '%s', 'volatility': '%s', 'volume_trend': '%s', 'rsi_level': %.2f}",
		s.Trend, s.Volatility, s.VolumeTrend, s.RSILevel)
}

// Provider retrieves an indicator dataset for a ticker. Implementations
// own the market-data fetch and the indicator math.
type Provider interface {
	Get(ctx context.Context, stockCode string, market Type, days int) (*Dataset, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, stockCode string, market Type, days int) (*Dataset, error)

func (f ProviderFunc) Get(ctx context.Context, stockCode string, market Type, days int) (*Dataset, error) {
	return f(ctx, stockCode, market, days)
}

// Scorer maps an indicator dataset to a 0-100 score and a categorical
// recommendation label.
type Scorer interface {
	Score(d *Dataset) int
	Recommend(score int) string
}
