// Package orchestrator resolves a requested preset and fans an analysis
// request out to the matching pipeline, concatenating per-ticker event
// streams in strict request order.
package orchestrator

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-scanner/internal/analyzer"
	"stock-scanner/internal/events"
	"stock-scanner/internal/llm"
	"stock-scanner/internal/market"
	"stock-scanner/internal/roles"
)

// Request is one top-level analysis request.
type Request struct {
	StockCodes       []string
	MarketType       market.Type
	Stream           bool
	Days             int
	PresetID         string
	PortfolioContext string

	// Per-request endpoint overrides; blank fields fall through to the
	// process defaults.
	API llm.Overrides
}

// Orchestrator wires the collaborators into per-request pipelines. It
// holds no request state itself.
type Orchestrator struct {
	provider market.Provider
	scorer   market.Scorer
	defaults llm.Overrides
	log      zerolog.Logger
}

// New creates an Orchestrator with process-level endpoint defaults.
func New(provider market.Provider, scorer market.Scorer, defaults llm.Overrides, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		scorer:   scorer,
		defaults: defaults,
		log:      log,
	}
}

// Client builds a model client for one request's resolved configuration.
func (o *Orchestrator) Client(api llm.Overrides) *llm.Client {
	return llm.New(llm.Resolve(api, o.defaults, o.log), o.log)
}

// Analyzer builds the single-preset pipeline for one request.
func (o *Orchestrator) Analyzer(api llm.Overrides) *analyzer.Analyzer {
	return analyzer.New(o.provider, o.scorer, o.Client(api), o.log)
}

// Run executes the request, yielding the combined event stream. The
// first event announces the resolved preset and a fresh analysis
// identifier used only for client-side correlation.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan events.Event {
	ch := make(chan events.Event)
	go func() {
		defer close(ch)

		preset := ResolvePreset(req.PresetID)
		analysisID := uuid.NewString()
		o.log.Info().
			Str("preset_id", preset.ID).
			Str("analysis_id", analysisID).
			Strs("stock_codes", req.StockCodes).
			Msg("Orchestrator run started")

		if !send(ctx, ch, events.NewOrchestratorInit(preset.ID, analysisID)) {
			return
		}

		if preset.MultiRole {
			pipeline := roles.NewPipeline(o.provider, o.scorer, o.Client(req.API), o.log)
			for _, code := range req.StockCodes {
				if !relay(ctx, ch, pipeline.Analyze(ctx, code, req.MarketType, req.Days, req.PortfolioContext)) {
					return
				}
			}
			return
		}

		a := o.Analyzer(req.API)
		if len(req.StockCodes) == 1 {
			relay(ctx, ch, a.AnalyzeStock(ctx, req.StockCodes[0], req.MarketType, req.Stream, req.Days, req.PortfolioContext))
			return
		}
		relay(ctx, ch, a.ScanStocks(ctx, req.StockCodes, req.MarketType, req.Stream, req.Days, req.PortfolioContext))
	}()
	return ch
}

func send(ctx context.Context, ch chan<- events.Event, ev events.Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// relay drains a pipeline's event channel into the combined stream,
// preserving order. It reports false once the caller has gone away.
func relay(ctx context.Context, out chan<- events.Event, in <-chan events.Event) bool {
	for ev := range in {
		if !send(ctx, out, ev) {
			return false
		}
	}
	return ctx.Err() == nil
}
