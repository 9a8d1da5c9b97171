package market

// TechnicalScorer is the default Scorer built purely from indicator
// classifications. It never consults model output.
type TechnicalScorer struct{}

// NewTechnicalScorer returns the default indicator-based scorer.
func NewTechnicalScorer() *TechnicalScorer {
	return &TechnicalScorer{}
}

// Score rates the dataset on a 0-100 scale starting from a neutral 50.
func (s *TechnicalScorer) Score(d *Dataset) int {
	snap := d.Snapshot()
	score := 50

	if snap.MATrend == "UP" {
		score += 15
	} else {
		score -= 15
	}

	if snap.MACDSignal == "BUY" {
		score += 10
	} else {
		score -= 10
	}

	// RSI extremes: oversold is a contrarian buy signal, overbought a sell.
	if snap.RSI > 0 && snap.RSI < 30 {
		score += 15
	} else if snap.RSI > 70 {
		score -= 15
	}

	switch snap.VolumeState {
	case "HIGH":
		score += 5
	case "LOW":
		score -= 5
	}

	return clampScore(score)
}

// Recommend maps a score to a categorical recommendation label.
func (s *TechnicalScorer) Recommend(score int) string {
	switch {
	case score >= 75:
		return "买入"
	case score >= 55:
		return "持有"
	case score >= 40:
		return "观望"
	default:
		return "卖出"
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
