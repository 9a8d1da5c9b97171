// Package analyzer implements the single-prompt analysis pipeline: one
// market-specific narrative per ticker, streamed as wire events.
package analyzer

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	apperrors "stock-scanner/internal/errors"
	"stock-scanner/internal/events"
	"stock-scanner/internal/llm"
	"stock-scanner/internal/logging"
	"stock-scanner/internal/market"
)

// ChatClient is the subset of the model client the pipeline depends on.
type ChatClient interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, *openai.Usage, error)
	Stream(ctx context.Context, messages []openai.ChatCompletionMessage, onChunk func(llm.Chunk) error) error
}

// Analyzer runs the single-preset pipeline over one or more tickers.
type Analyzer struct {
	provider market.Provider
	scorer   market.Scorer
	client   ChatClient
	log      zerolog.Logger
}

// New creates an Analyzer.
func New(provider market.Provider, scorer market.Scorer, client ChatClient, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		provider: provider,
		scorer:   scorer,
		client:   client,
		log:      log,
	}
}

// emitter delivers events to the consumer channel, honoring caller
// cancellation. send reports false once the context is done.
type emitter struct {
	ctx context.Context
	ch  chan<- events.Event
}

func (e *emitter) send(ev events.Event) bool {
	select {
	case e.ch <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// AnalyzeStock runs the single-preset pipeline for one ticker. The
// returned channel is closed when the ticker's stream ends; every
// failure surfaces as an error event, never a panic or a bare close.
func (a *Analyzer) AnalyzeStock(ctx context.Context, stockCode string, mkt market.Type, stream bool, days int, portfolio string) <-chan events.Event {
	ch := make(chan events.Event)
	go func() {
		defer close(ch)
		em := &emitter{ctx: ctx, ch: ch}
		a.analyzeOne(ctx, em, stockCode, mkt, stream, days, portfolio)
	}()
	return ch
}

// ScanStocks runs the single-preset narrative across a batch of
// tickers, strictly sequentially: one ticker's events are fully emitted
// before the next ticker begins. A failed ticker does not stop the batch.
func (a *Analyzer) ScanStocks(ctx context.Context, stockCodes []string, mkt market.Type, stream bool, days int, portfolio string) <-chan events.Event {
	ch := make(chan events.Event)
	go func() {
		defer close(ch)
		em := &emitter{ctx: ctx, ch: ch}
		for _, code := range stockCodes {
			select {
			case <-ctx.Done():
				return
			default:
			}
			a.analyzeOne(ctx, em, code, mkt, stream, days, portfolio)
		}
	}()
	return ch
}

func (a *Analyzer) analyzeOne(ctx context.Context, em *emitter, stockCode string, mkt market.Type, stream bool, days int, portfolio string) {
	log := logging.WithMarket(logging.WithStock(a.log, stockCode), string(mkt))
	log.Info().Bool("stream", stream).Int("days", days).Msg("Starting analysis")

	ds, err := a.provider.Get(ctx, stockCode, mkt, days)
	if err != nil {
		log.Error().Err(apperrors.NewPipelineError("fetch", stockCode, err)).Msg("Indicator data fetch failed")
		em.send(events.NewErrorf(stockCode, "获取股票数据失败: %v", err))
		return
	}
	if len(ds.Rows) == 0 {
		em.send(events.NewError(stockCode, "未获取到股票数据"))
		return
	}

	score := a.scorer.Score(ds)
	if !em.send(events.NewSnapshot(stockCode, ds.Snapshot(), score, a.scorer.Recommend(score))) {
		return
	}

	a.narrate(ctx, em, ds, stream, days, portfolio)
}

// narrate runs the prompt/LLM/extraction stage over an already fetched
// dataset, emitting chart data, narrative chunks, and the completion.
func (a *Analyzer) narrate(ctx context.Context, em *emitter, ds *market.Dataset, stream bool, days int, portfolio string) {
	stockCode := ds.StockCode
	log := logging.WithStock(a.log, stockCode)

	summary := ds.Summary()
	rows := ds.Tail(days)
	if !em.send(events.NewChart(stockCode, rows)) {
		return
	}

	prompt := BuildPrompt(stockCode, ds.Market, summary, rows, days, portfolio)
	usage := &llm.UsageRecord{}
	usage.AddPromptChars(utf8.RuneCountInString(prompt))
	messages := llm.UserMessage(prompt)

	if stream {
		var buf strings.Builder
		err := a.client.Stream(ctx, messages, func(c llm.Chunk) error {
			usage.Add(c.Usage)
			if c.Text == "" {
				return nil
			}
			buf.WriteString(c.Text)
			if !em.send(events.NewChunk(stockCode, c.Text)) {
				return context.Canceled
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Streamed analysis failed")
			em.send(events.NewError(stockCode, userMessage(err)))
			return
		}

		full := buf.String()
		usage.AddOutputChars(utf8.RuneCountInString(full))

		// Clients render chunk-by-chunk; make sure the narrative ends
		// on a line boundary.
		if full != "" && !strings.HasSuffix(full, "\n") {
			if !em.send(events.NewChunk(stockCode, "\n")) {
				return
			}
		}

		recommendation := ExtractRecommendation(full)
		score := CalculateScore(full, summary)
		logging.LogAnalysis(log, stockCode, recommendation, score, usage.TotalTokens)
		em.send(events.NewCompletion(stockCode, score, recommendation, usage.Payload()))
		return
	}

	text, u, err := a.client.Complete(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msg("Analysis request failed")
		em.send(events.NewError(stockCode, userMessage(err)))
		return
	}
	usage.Add(u)
	usage.AddOutputChars(utf8.RuneCountInString(text))

	recommendation := ExtractRecommendation(text)
	score := CalculateScore(text, summary)
	analysisDate := time.Now().Format("2006-01-02")
	logging.LogAnalysis(log, stockCode, recommendation, score, usage.TotalTokens)
	em.send(events.NewFullCompletion(stockCode, text, score, recommendation, ds.Snapshot(), analysisDate, usage.Payload()))
}

// userMessage maps internal errors to the user-facing message carried
// on the error event.
func userMessage(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrAPIKeyMissing):
		return "API_KEY未配置或为空，请检查API配置"
	case apperrors.IsTimeout(err):
		return "分析请求超时，请稍后重试"
	}
	var ue *apperrors.UpstreamError
	if apperrors.As(err, &ue) {
		return "API请求失败: " + ue.Message
	}
	return "分析出错: " + err.Error()
}
