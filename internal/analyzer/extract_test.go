package analyzer

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stock-scanner/internal/market"
)

func TestExtractRecommendation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "buy keyword in advice section",
			text: "## 技术面分析\n均线多头排列。\n\n## 投资建议\n建议投资者逢低买入。\n\n## 风险提示\n注意回调风险。",
			want: RecommendBuy,
		},
		{
			name: "accumulate counts as buy",
			text: "## 投资建议\n可适当增持。",
			want: RecommendBuy,
		},
		{
			name: "sell keyword",
			text: "## 投资建议\n建议卖出止损。\n## 其他",
			want: RecommendSell,
		},
		{
			name: "reduce counts as sell",
			text: "## 投资建议\n建议减持观察。",
			want: RecommendSell,
		},
		{
			name: "hold keyword",
			text: "## 投资建议\n继续持有为宜。",
			want: RecommendHold,
		},
		{
			name: "buy wins over hold in same section",
			text: "## 投资建议\n可以买入并持有。",
			want: RecommendBuy,
		},
		{
			name: "no advice section defaults to watch",
			text: "这只股票的技术形态一般。",
			want: RecommendWatch,
		},
		{
			name: "advice section without keywords defaults to watch",
			text: "## 投资建议\n市场不确定性较大，谨慎操作。",
			want: RecommendWatch,
		},
		{
			name: "keyword outside advice section is ignored",
			text: "## 技术面分析\n短期可能买入资金增多。\n## 投资建议\n暂不操作。",
			want: RecommendWatch,
		},
		{
			name: "empty text",
			text: "",
			want: RecommendWatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractRecommendation(tt.text); got != tt.want {
				t.Errorf("ExtractRecommendation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCalculateScore(t *testing.T) {
	bullish := market.Summary{Trend: "upward", VolumeTrend: "increasing", RSILevel: 50}
	bearish := market.Summary{Trend: "downward", VolumeTrend: "decreasing", RSILevel: 50}

	tests := []struct {
		name    string
		text    string
		summary market.Summary
		want    int
	}{
		{"neutral text bullish summary", "走势平稳。", bullish, 65},
		{"neutral text bearish summary", "走势平稳。", bearish, 35},
		{"strong buy keyword", "预计显著上涨。", bullish, 85},
		{"plain buy keyword", "建议买入。", bullish, 75},
		{"strong buy wins over plain buy", "强烈买入，坚决买入。", bullish, 85},
		{"strong sell keyword", "可能显著下跌。", bearish, 15},
		{"plain sell keyword", "建议卖出。", bearish, 25},
		{"oversold adds", "走势平稳。", market.Summary{Trend: "downward", VolumeTrend: "decreasing", RSILevel: 25}, 50},
		{"overbought subtracts", "走势平稳。", market.Summary{Trend: "upward", VolumeTrend: "increasing", RSILevel: 75}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateScore(tt.text, tt.summary); got != tt.want {
				t.Errorf("CalculateScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

// The heuristic score is clamped and the extraction always yields one of
// the four labels no matter what text the model produced.
func TestProperty_ExtractionAndScoreAreTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("extraction yields a known label", prop.ForAll(
		func(text string) bool {
			switch ExtractRecommendation(text) {
			case RecommendBuy, RecommendSell, RecommendHold, RecommendWatch:
				return true
			}
			return false
		},
		gen.AnyString(),
	))

	properties.Property("score stays in [0,100]", prop.ForAll(
		func(text, trend, volumeTrend string, rsi float64) bool {
			summary := market.Summary{Trend: trend, VolumeTrend: volumeTrend, RSILevel: rsi}
			score := CalculateScore(text, summary)
			return score >= 0 && score <= 100
		},
		gen.AnyString(),
		gen.OneConstOf("upward", "downward"),
		gen.OneConstOf("increasing", "decreasing"),
		gen.Float64Range(0, 100),
	))

	properties.Property("extraction is idempotent on its own output context", prop.ForAll(
		func(advice string) bool {
			text := "## 投资建议\n" + advice
			first := ExtractRecommendation(text)
			second := ExtractRecommendation(text)
			return first == second
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
