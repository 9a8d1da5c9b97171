package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"stock-scanner/internal/events"
	"stock-scanner/internal/llm"
	"stock-scanner/internal/market"
	"stock-scanner/internal/orchestrator"
	"stock-scanner/internal/store"
)

type analyzeRequest struct {
	StockCodes       []string `json:"stock_codes"`
	StockCode        string   `json:"stock_code"`
	MarketType       string   `json:"market_type"`
	AnalysisDays     int      `json:"analysis_days"`
	Stream           *bool    `json:"stream"`
	PresetID         string   `json:"preset_id"`
	PortfolioContext string   `json:"portfolio_context"`

	APIURL     string `json:"api_url"`
	APIKey     string `json:"api_key"`
	APIModel   string `json:"api_model"`
	APITimeout string `json:"api_timeout"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}

	codes := req.StockCodes
	if len(codes) == 0 && strings.TrimSpace(req.StockCode) != "" {
		codes = []string{req.StockCode}
	}
	for i := range codes {
		codes[i] = strings.TrimSpace(codes[i])
	}
	if len(codes) == 0 || codes[0] == "" {
		respondError(w, http.StatusBadRequest, "请输入代码")
		return
	}

	days := req.AnalysisDays
	if days <= 0 {
		days = 30
	}
	stream := true
	if req.Stream != nil {
		stream = *req.Stream
	}

	user := currentUser(r)
	runReq := orchestrator.Request{
		StockCodes:       codes,
		MarketType:       market.ParseType(req.MarketType),
		Stream:           stream,
		Days:             days,
		PresetID:         req.PresetID,
		PortfolioContext: req.PortfolioContext,
		API: llm.Overrides{
			URL:     req.APIURL,
			Key:     req.APIKey,
			Model:   req.APIModel,
			Timeout: req.APITimeout,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher, _ := w.(http.Flusher)

	writeLine := func(ev events.Event) bool {
		if err := events.Write(w, ev); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	// Leading line declares the stream shape before any analysis event.
	var init events.Init
	if len(codes) == 1 {
		init = events.NewSingleInit(codes[0])
	} else {
		init = events.NewBatchInit(codes)
	}
	if !writeLine(init) {
		return
	}

	coll := newCollector(codes)
	ch := s.orch.Run(r.Context(), runReq)
	for ev := range ch {
		coll.observe(ev)
		if !writeLine(ev) {
			// Client went away; drain so the pipeline can terminate.
			for range ch {
			}
			break
		}
	}

	s.saveTranscript(user, codes, req.MarketType, days, coll)
}

// saveTranscript persists the accumulated analysis record. A failure
// here is logged, never surfaced: the client already has the stream.
func (s *Server) saveTranscript(user string, codes []string, marketType string, days int, coll *collector) {
	if coll.empty() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec := &store.AnalysisRecord{
		User:           user,
		StockCodes:     codes,
		MarketType:     string(market.ParseType(marketType)),
		AnalysisDays:   days,
		AnalysisResult: coll.analysisResult(),
		AIOutput:       coll.aiOutput(),
		ChartData:      coll.chartData(),
	}
	id, err := s.store.SaveAnalysis(ctx, rec)
	if err != nil {
		s.log.Error().Err(err).Msg("Saving analysis transcript failed")
		return
	}
	s.log.Info().Int64("history_id", id).Str("user", user).Msg("Analysis transcript saved")
}
