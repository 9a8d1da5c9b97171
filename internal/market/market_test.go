package market

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"A", TypeA},
		{"US", TypeUS},
		{"HK", TypeHK},
		{"ETF", TypeETF},
		{"LOF", TypeLOF},
		{"", TypeA},
		{"nasdaq", TypeA},
	}
	for _, tt := range tests {
		if got := ParseType(tt.in); got != tt.want {
			t.Errorf("ParseType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if !TypeETF.IsFund() || !TypeLOF.IsFund() {
		t.Error("fund types not recognized")
	}
	if TypeA.IsFund() || TypeUS.IsFund() {
		t.Error("equity types reported as funds")
	}
}

func TestSnapshotClassifications(t *testing.T) {
	tests := []struct {
		name       string
		row        Row
		maTrend    string
		macdSignal string
		volume     string
	}{
		{
			name:       "bullish across the board",
			row:        Row{MA5: 11, MA20: 10, MACD: 0.5, MACDSignal: 0.2, VolumeRatio: 2.0},
			maTrend:    "UP",
			macdSignal: "BUY",
			volume:     "HIGH",
		},
		{
			name:       "bearish with thin volume",
			row:        Row{MA5: 9, MA20: 10, MACD: -0.5, MACDSignal: -0.2, VolumeRatio: 0.3},
			maTrend:    "DOWN",
			macdSignal: "SELL",
			volume:     "LOW",
		},
		{
			name:       "boundary volume ratio is normal",
			row:        Row{MA5: 10, MA20: 10, MACD: 0, MACDSignal: 0, VolumeRatio: 1.5},
			maTrend:    "DOWN",
			macdSignal: "SELL",
			volume:     "NORMAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Dataset{StockCode: "600519", Rows: []Row{tt.row}}
			snap := d.Snapshot()
			if snap.MATrend != tt.maTrend {
				t.Errorf("MATrend = %q, want %q", snap.MATrend, tt.maTrend)
			}
			if snap.MACDSignal != tt.macdSignal {
				t.Errorf("MACDSignal = %q, want %q", snap.MACDSignal, tt.macdSignal)
			}
			if snap.VolumeState != tt.volume {
				t.Errorf("VolumeState = %q, want %q", snap.VolumeState, tt.volume)
			}
		})
	}
}

func TestSummaryString(t *testing.T) {
	d := &Dataset{Rows: []Row{{MA5: 11, MA20: 10, Volatility: 2.345, VolumeRatio: 1.2, RSI: 55.6}}}
	got := d.Summary().String()
	want := "{'trend': 'upward', 'volatility': '2.35%', 'volume_trend': 'increasing', 'rsi_level': 55.60}"
	if got != want {
		t.Errorf("Summary.String() = %q, want %q", got, want)
	}
}

func TestTail(t *testing.T) {
	d := &Dataset{Rows: []Row{{Date: "d1"}, {Date: "d2"}, {Date: "d3"}}}
	if got := d.Tail(2); len(got) != 2 || got[0].Date != "d2" {
		t.Errorf("Tail(2) = %v", got)
	}
	if got := d.Tail(10); len(got) != 3 {
		t.Errorf("Tail(10) returned %d rows", len(got))
	}
	if got := d.Tail(0); len(got) != 3 {
		t.Errorf("Tail(0) returned %d rows", len(got))
	}
}

// The indicator score is always within 0-100 and the recommendation
// bands partition it completely.
func TestProperty_TechnicalScoreBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	scorer := NewTechnicalScorer()

	properties.Property("score stays in [0,100]", prop.ForAll(
		func(ma5, ma20, macd, macdSig, rsi, volRatio float64) bool {
			d := &Dataset{Rows: []Row{{
				MA5: ma5, MA20: ma20,
				MACD: macd, MACDSignal: macdSig,
				RSI: rsi, VolumeRatio: volRatio,
			}}}
			score := scorer.Score(d)
			return score >= 0 && score <= 100
		},
		gen.Float64Range(0, 1000),
		gen.Float64Range(0, 1000),
		gen.Float64Range(-10, 10),
		gen.Float64Range(-10, 10),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 5),
	))

	properties.Property("every score maps to a recommendation", prop.ForAll(
		func(score int) bool {
			switch scorer.Recommend(score) {
			case "买入", "持有", "观望", "卖出":
				return true
			}
			return false
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestRecommendBands(t *testing.T) {
	scorer := NewTechnicalScorer()
	tests := []struct {
		score int
		want  string
	}{
		{100, "买入"},
		{75, "买入"},
		{74, "持有"},
		{55, "持有"},
		{54, "观望"},
		{40, "观望"},
		{39, "卖出"},
		{0, "卖出"},
	}
	for _, tt := range tests {
		if got := scorer.Recommend(tt.score); got != tt.want {
			t.Errorf("Recommend(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
