package analyzer

import (
	"regexp"
	"strings"

	"stock-scanner/internal/market"
)

// Recommendation labels.
const (
	RecommendBuy   = "买入"
	RecommendSell  = "卖出"
	RecommendHold  = "持有"
	RecommendWatch = "观望"
)

var advicePattern = regexp.MustCompile(`(?s)##\s*投资建议\s*\n(.*?)(?:\n##|$)`)

// ExtractRecommendation locates the investment-advice section of the
// analysis text and classifies it by keyword. Absence of a recognizable
// section yields the watch default, never an error.
func ExtractRecommendation(analysisText string) string {
	match := advicePattern.FindStringSubmatch(analysisText)
	if match == nil {
		return RecommendWatch
	}

	advice := strings.TrimSpace(match[1])
	switch {
	case strings.Contains(advice, "买入") || strings.Contains(advice, "增持"):
		return RecommendBuy
	case strings.Contains(advice, "卖出") || strings.Contains(advice, "减持"):
		return RecommendSell
	case strings.Contains(advice, "持有"):
		return RecommendHold
	default:
		return RecommendWatch
	}
}

// CalculateScore computes the heuristic 0-100 analysis score from the
// technical summary and the generated narrative text.
func CalculateScore(analysisText string, summary market.Summary) int {
	score := 50

	if summary.Trend == "upward" {
		score += 10
	} else {
		score -= 10
	}

	if summary.VolumeTrend == "increasing" {
		score += 5
	} else {
		score -= 5
	}

	if summary.RSILevel < 30 {
		score += 15
	} else if summary.RSILevel > 70 {
		score -= 15
	}

	switch {
	case strings.Contains(analysisText, "强烈买入") || strings.Contains(analysisText, "显著上涨"):
		score += 20
	case strings.Contains(analysisText, "买入") || strings.Contains(analysisText, "看涨"):
		score += 10
	case strings.Contains(analysisText, "强烈卖出") || strings.Contains(analysisText, "显著下跌"):
		score -= 20
	case strings.Contains(analysisText, "卖出") || strings.Contains(analysisText, "看跌"):
		score -= 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
