package roles

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"stock-scanner/internal/analyzer"
	apperrors "stock-scanner/internal/errors"
	"stock-scanner/internal/events"
	"stock-scanner/internal/llm"
	"stock-scanner/internal/logging"
	"stock-scanner/internal/market"
)

// Markers delimiting narrative segments in the emitted chunk stream.
const (
	analysisBegin = "<analysis>"
	analysisEnd   = "</analysis>"
	finalBegin    = "<final>"
	finalEnd      = "</final>"
)

// ChatClient is the subset of the model client the pipeline depends on.
type ChatClient interface {
	Stream(ctx context.Context, messages []openai.ChatCompletionMessage, onChunk func(llm.Chunk) error) error
}

// Pipeline runs the six-role sequence plus synthesizer for one ticker
// at a time. Roles never run in parallel: each role's prompt includes
// all prior outputs.
type Pipeline struct {
	provider market.Provider
	scorer   market.Scorer
	client   ChatClient
	log      zerolog.Logger
}

// NewPipeline creates a multi-role pipeline.
func NewPipeline(provider market.Provider, scorer market.Scorer, client ChatClient, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		provider: provider,
		scorer:   scorer,
		client:   client,
		log:      log,
	}
}

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

// Analyze runs the full role sequence for one ticker. Any role failure
// (including the synthesizer) emits a single error event and aborts the
// remainder of this ticker's pipeline.
func (p *Pipeline) Analyze(ctx context.Context, stockCode string, mkt market.Type, days int, portfolio string) <-chan events.Event {
	ch := make(chan events.Event)
	go func() {
		defer close(ch)
		em := &emitter{ctx: ctx, ch: ch}
		p.run(ctx, em, stockCode, mkt, days, portfolio)
	}()
	return ch
}

func (p *Pipeline) run(ctx context.Context, em *emitter, stockCode string, mkt market.Type, days int, portfolio string) {
	log := logging.WithMarket(logging.WithStock(p.log, stockCode), string(mkt))
	log.Info().Int("days", days).Int("roles", len(Roles)).Msg("Starting multi-role analysis")

	ds, err := p.provider.Get(ctx, stockCode, mkt, days)
	if err != nil {
		log.Error().Err(err).Msg("Indicator data fetch failed")
		em.send(events.NewErrorf(stockCode, "获取股票数据失败: %v", err))
		return
	}
	if len(ds.Rows) == 0 {
		em.send(events.NewError(stockCode, "未获取到股票数据"))
		return
	}

	score := p.scorer.Score(ds)
	if !em.send(events.NewSnapshot(stockCode, ds.Snapshot(), score, p.scorer.Recommend(score))) {
		return
	}

	summary := ds.Summary()
	rows := ds.Tail(days)
	if !em.send(events.NewChart(stockCode, rows)) {
		return
	}

	rowsData, err := json.Marshal(rows)
	if err != nil {
		em.send(events.NewErrorf(stockCode, "分析出错: %v", err))
		return
	}
	rowsJSON := string(rowsData)

	usage := &llm.UsageRecord{}
	var contextBlocks []string

	for i, role := range Roles {
		order := i + 1
		// Portfolio context reaches later roles only transitively,
		// through the accumulated prior outputs.
		rolePortfolio := ""
		if order == 1 {
			rolePortfolio = portfolio
		}
		prompt := BuildRolePrompt(role, order, stockCode, mkt, summary, rowsJSON, days,
			strings.Join(contextBlocks, "\n\n"), rolePortfolio)

		output, ok := p.streamRole(ctx, em, stockCode, role.Name, order, prompt,
			analysisBegin, analysisEnd, usage)
		if !ok {
			return
		}
		contextBlocks = append(contextBlocks, contextLabel(role.Name, output))
		logging.LogRoleStep(log, stockCode, role.Name, order, utf8.RuneCountInString(output))
	}

	transcript := strings.Join(contextBlocks, "\n\n")
	synthPrompt := BuildSynthesizerPrompt(stockCode, mkt, summary, days, transcript)
	synthText, ok := p.streamRole(ctx, em, stockCode, Synthesizer.Name, len(Roles)+1, synthPrompt,
		finalBegin, finalEnd, usage)
	if !ok {
		return
	}

	recommendation := analyzer.ExtractRecommendation(synthText)
	finalScore := analyzer.CalculateScore(synthText, summary)
	logging.LogAnalysis(log, stockCode, recommendation, finalScore, usage.TotalTokens)
	em.send(events.NewCompletion(stockCode, finalScore, recommendation, usage.Payload()))
}

// streamRole runs one role's model call, wrapping its chunk stream in
// the begin/end markers. It returns the collected output text; ok is
// false when the ticker's pipeline must stop (an error event has been
// emitted, or the caller went away).
func (p *Pipeline) streamRole(ctx context.Context, em *emitter, stockCode, roleName string, order int, prompt, beginMarker, endMarker string, usage *llm.UsageRecord) (string, bool) {
	usage.AddPromptChars(utf8.RuneCountInString(prompt))

	if !em.send(events.NewRoleChunk(stockCode, beginMarker, roleName, order)) {
		return "", false
	}

	var buf strings.Builder
	err := p.client.Stream(ctx, llm.UserMessage(prompt), func(c llm.Chunk) error {
		usage.Add(c.Usage)
		if c.Text == "" {
			return nil
		}
		buf.WriteString(c.Text)
		if !em.send(events.NewRoleChunk(stockCode, c.Text, roleName, order)) {
			return context.Canceled
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", false
		}
		em.send(events.NewError(stockCode, roleErrMessage(roleName, err)))
		return "", false
	}

	output := buf.String()
	usage.AddOutputChars(utf8.RuneCountInString(output))
	if output == "" {
		em.send(events.NewError(stockCode, roleErrMessage(roleName, apperrors.ErrEmptyResponse)))
		return "", false
	}

	if !em.send(events.NewRoleChunk(stockCode, endMarker+"\n", roleName, order)) {
		return "", false
	}
	return output, true
}

// roleErrMessage maps a role failure to its user-facing message, with a
// distinguished form for timeouts.
func roleErrMessage(roleName string, err error) string {
	if apperrors.Is(err, apperrors.ErrAPIKeyMissing) {
		return "API_KEY未配置或为空，请检查API配置"
	}
	if apperrors.IsTimeout(err) {
		return "角色「" + roleName + "」分析超时，请稍后重试"
	}
	var ue *apperrors.UpstreamError
	if apperrors.As(err, &ue) {
		return "角色「" + roleName + "」API请求失败: " + ue.Message
	}
	return "角色「" + roleName + "」分析失败: " + err.Error()
}
