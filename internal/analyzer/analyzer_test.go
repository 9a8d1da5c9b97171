package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	apperrors "stock-scanner/internal/errors"
	"stock-scanner/internal/events"
	"stock-scanner/internal/llm"
	"stock-scanner/internal/market"
)

type fakeProvider struct {
	datasets map[string]*market.Dataset
	err      error
}

func (f *fakeProvider) Get(ctx context.Context, stockCode string, mkt market.Type, days int) (*market.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	ds, ok := f.datasets[stockCode]
	if !ok {
		return &market.Dataset{StockCode: stockCode, Market: mkt}, nil
	}
	return ds, nil
}

type fakeClient struct {
	chunks      []llm.Chunk
	streamErr   error
	fullText    string
	completeErr error
	calls       int
}

func (f *fakeClient) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, *openai.Usage, error) {
	f.calls++
	if f.completeErr != nil {
		return "", nil, f.completeErr
	}
	return f.fullText, &openai.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}, nil
}

func (f *fakeClient) Stream(ctx context.Context, messages []openai.ChatCompletionMessage, onChunk func(llm.Chunk) error) error {
	f.calls++
	if f.streamErr != nil {
		return f.streamErr
	}
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

func testDataset(code string) *market.Dataset {
	return &market.Dataset{
		StockCode: code,
		Market:    market.TypeA,
		Rows: []market.Row{
			{Date: "2025-05-30", Close: 100, MA5: 101, MA20: 99, RSI: 55, MACD: 0.3, MACDSignal: 0.1, VolumeRatio: 1.2, Volatility: 2.1},
			{Date: "2025-06-01", Close: 102, MA5: 102, MA20: 99, RSI: 58, MACD: 0.4, MACDSignal: 0.2, VolumeRatio: 1.3, Volatility: 2.0, Change: 2.0},
		},
	}
}

func collect(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func newTestAnalyzer(provider market.Provider, client ChatClient) *Analyzer {
	return New(provider, market.NewTechnicalScorer(), client, zerolog.Nop())
}

func TestAnalyzeStockStreaming(t *testing.T) {
	provider := &fakeProvider{datasets: map[string]*market.Dataset{"600519": testDataset("600519")}}
	client := &fakeClient{chunks: []llm.Chunk{
		{Text: "## 技术面分析\n短期看涨。\n"},
		{Text: "## 投资建议\n建议买入。", Usage: &openai.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}},
	}}

	got := collect(newTestAnalyzer(provider, client).AnalyzeStock(context.Background(), "600519", market.TypeA, true, 30, ""))

	if len(got) < 4 {
		t.Fatalf("got %d events: %+v", len(got), got)
	}

	snap, ok := got[0].(events.Snapshot)
	if !ok {
		t.Fatalf("first event = %T", got[0])
	}
	if snap.Status != events.StatusWaiting || snap.StockCode != "600519" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.MATrend != "UP" || snap.MACDSignal != "BUY" {
		t.Errorf("snapshot classifications = %+v", snap)
	}

	chart, ok := got[1].(events.Chart)
	if !ok {
		t.Fatalf("second event = %T", got[1])
	}
	if chart.Status != events.StatusAnalyzing || len(chart.ChartData) != 2 {
		t.Errorf("chart = %+v", chart)
	}

	var narrative strings.Builder
	for _, ev := range got[2 : len(got)-1] {
		chunk, ok := ev.(events.Chunk)
		if !ok {
			t.Fatalf("mid-stream event = %T", ev)
		}
		narrative.WriteString(chunk.Text)
	}
	if !strings.HasSuffix(narrative.String(), "\n") {
		t.Errorf("narrative does not end on a line boundary: %q", narrative.String())
	}

	done, ok := got[len(got)-1].(events.Completion)
	if !ok {
		t.Fatalf("last event = %T", got[len(got)-1])
	}
	if done.Status != events.StatusCompleted || done.Recommendation != RecommendBuy {
		t.Errorf("completion = %+v", done)
	}
	if done.Analysis != "" {
		t.Error("streamed completion carries full analysis text")
	}
	if done.TokenUsage == nil || done.TokenUsage.Estimated || done.TokenUsage.TotalTokens != 150 {
		t.Errorf("token usage = %+v", done.TokenUsage)
	}
}

func TestAnalyzeStockNonStreaming(t *testing.T) {
	provider := &fakeProvider{datasets: map[string]*market.Dataset{"600519": testDataset("600519")}}
	client := &fakeClient{fullText: "## 技术面分析\n稳健。\n\n## 投资建议\n继续持有。"}

	got := collect(newTestAnalyzer(provider, client).AnalyzeStock(context.Background(), "600519", market.TypeA, false, 30, ""))

	if len(got) != 3 {
		t.Fatalf("got %d events: %+v", len(got), got)
	}
	done, ok := got[2].(events.Completion)
	if !ok {
		t.Fatalf("last event = %T", got[2])
	}
	if done.Analysis == "" || done.Recommendation != RecommendHold {
		t.Errorf("completion = %+v", done)
	}
	if done.Price == nil || *done.Price != 102 {
		t.Errorf("price = %v", done.Price)
	}
	if done.AnalysisDate == "" {
		t.Error("analysis_date missing")
	}
}

func TestAnalyzeStockUsageEstimatedWhenUpstreamSilent(t *testing.T) {
	provider := &fakeProvider{datasets: map[string]*market.Dataset{"600519": testDataset("600519")}}
	client := &fakeClient{chunks: []llm.Chunk{{Text: "简短分析。\n"}}}

	got := collect(newTestAnalyzer(provider, client).AnalyzeStock(context.Background(), "600519", market.TypeA, true, 30, ""))

	done, ok := got[len(got)-1].(events.Completion)
	if !ok {
		t.Fatalf("last event = %T", got[len(got)-1])
	}
	if done.TokenUsage == nil || !done.TokenUsage.Estimated {
		t.Errorf("token usage = %+v", done.TokenUsage)
	}
	if done.TokenUsage.TotalTokens != (done.TokenUsage.PromptChars+done.TokenUsage.OutputChars)/3 {
		t.Errorf("estimate mismatch: %+v", done.TokenUsage)
	}
}

func TestAnalyzeStockProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream source unreachable")}
	client := &fakeClient{}

	got := collect(newTestAnalyzer(provider, client).AnalyzeStock(context.Background(), "600519", market.TypeA, true, 30, ""))

	if len(got) != 1 {
		t.Fatalf("got %d events: %+v", len(got), got)
	}
	errEv, ok := got[0].(events.Error)
	if !ok {
		t.Fatalf("event = %T", got[0])
	}
	if !strings.HasPrefix(errEv.Message, "获取股票数据失败") || errEv.Status != events.StatusError {
		t.Errorf("error event = %+v", errEv)
	}
	if client.calls != 0 {
		t.Error("model called despite missing data")
	}
}

func TestAnalyzeStockEmptyDataset(t *testing.T) {
	provider := &fakeProvider{}
	client := &fakeClient{}

	got := collect(newTestAnalyzer(provider, client).AnalyzeStock(context.Background(), "XXXX", market.TypeA, true, 30, ""))

	if len(got) != 1 {
		t.Fatalf("got %d events: %+v", len(got), got)
	}
	errEv := got[0].(events.Error)
	if errEv.Message != "未获取到股票数据" {
		t.Errorf("message = %q", errEv.Message)
	}
}

func TestAnalyzeStockErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing key", apperrors.ErrAPIKeyMissing, "API_KEY未配置或为空，请检查API配置"},
		{"timeout", apperrors.ErrTimeout, "分析请求超时，请稍后重试"},
		{"upstream", apperrors.NewUpstreamError(500, "internal error", nil), "API请求失败: internal error"},
		{"other", errors.New("boom"), "分析出错: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{datasets: map[string]*market.Dataset{"600519": testDataset("600519")}}
			client := &fakeClient{streamErr: tt.err}

			got := collect(newTestAnalyzer(provider, client).AnalyzeStock(context.Background(), "600519", market.TypeA, true, 30, ""))

			last, ok := got[len(got)-1].(events.Error)
			if !ok {
				t.Fatalf("last event = %T", got[len(got)-1])
			}
			if last.Message != tt.want {
				t.Errorf("message = %q, want %q", last.Message, tt.want)
			}
		})
	}
}

func TestScanStocksBatchOrderAndIsolation(t *testing.T) {
	provider := &fakeProvider{datasets: map[string]*market.Dataset{
		"600519": testDataset("600519"),
		"000001": testDataset("000001"),
	}}
	client := &fakeClient{chunks: []llm.Chunk{{Text: "分析。\n"}}}

	codes := []string{"600519", "BAD", "000001"}
	got := collect(newTestAnalyzer(provider, client).ScanStocks(context.Background(), codes, market.TypeA, true, 30, ""))

	// Events must arrive grouped per ticker, in request order.
	var order []string
	seen := map[string]bool{}
	for _, ev := range got {
		var code string
		switch e := ev.(type) {
		case events.Snapshot:
			code = e.StockCode
		case events.Chart:
			code = e.StockCode
		case events.Chunk:
			code = e.StockCode
		case events.Completion:
			code = e.StockCode
		case events.Error:
			code = e.StockCode
		}
		if !seen[code] {
			seen[code] = true
			order = append(order, code)
		}
	}
	if len(order) != 3 || order[0] != "600519" || order[1] != "BAD" || order[2] != "000001" {
		t.Errorf("ticker order = %v", order)
	}

	// The failed middle ticker must not stop the batch.
	var completions int
	for _, ev := range got {
		if _, ok := ev.(events.Completion); ok {
			completions++
		}
	}
	if completions != 2 {
		t.Errorf("completions = %d, want 2", completions)
	}
}

func TestBuildPromptIncludesPortfolioOnlyWhenGiven(t *testing.T) {
	ds := testDataset("600519")
	summary := ds.Summary()

	without := BuildPrompt("600519", market.TypeA, summary, ds.Rows, 30, "")
	if strings.Contains(without, "用户持仓背景") {
		t.Error("portfolio heading present without context")
	}

	with := BuildPrompt("600519", market.TypeA, summary, ds.Rows, 30, "持有茅台100股")
	if !strings.Contains(with, "用户持仓背景") || !strings.Contains(with, "持有茅台100股") {
		t.Error("portfolio context missing from prompt")
	}
	if !strings.Contains(with, "600519") {
		t.Error("stock code missing from prompt")
	}
}
