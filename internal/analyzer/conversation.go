package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"

	"stock-scanner/internal/events"
	"stock-scanner/internal/llm"
	"stock-scanner/internal/market"
)

// ConversationContext is the stored analysis record a follow-up
// conversation is anchored to.
type ConversationContext struct {
	StockCodes     []string
	MarketType     market.Type
	AnalysisDays   int
	AnalysisResult json.RawMessage // per-ticker map of price/score/rsi
	AIOutput       string
}

// conversationPrompts are the suggested follow-up questions offered to
// the client after an analysis completes.
var conversationPrompts = []string{
	"请详细解释一下这个分析结果中的技术指标含义",
	"基于当前分析，您认为这只股票的风险点在哪里？",
	"能否分析一下这只股票的支撑位和压力位？",
	"从技术面来看，这只股票适合什么类型的投资者？",
	"请分析一下成交量变化对股价的影响",
	"基于RSI指标，当前是否适合买入或卖出？",
	"能否预测一下这只股票的短期走势？",
	"请解释一下MACD指标在当前分析中的作用",
	"从风险收益比来看，这只股票值得投资吗？",
	"能否分析一下这只股票与同行业其他股票的对比？",
	"请详细说明一下止损位的设置逻辑",
	"基于当前技术指标，您建议的仓位管理策略是什么？",
	"能否分析一下这只股票在不同市场环境下的表现？",
	"请解释一下布林带指标在当前分析中的意义",
	"基于技术分析，您认为这只股票的中长期投资价值如何？",
}

// RandomPrompt returns one suggested follow-up question.
func RandomPrompt() string {
	return conversationPrompts[rand.Intn(len(conversationPrompts))]
}

// Converse answers a follow-up question against a finished analysis.
// History carries the prior conversation turns in order.
func (a *Analyzer) Converse(ctx context.Context, history []openai.ChatCompletionMessage, convCtx ConversationContext, userMessage string, stream bool) <-chan events.Event {
	ch := make(chan events.Event)
	go func() {
		defer close(ch)
		em := &emitter{ctx: ctx, ch: ch}
		a.converse(ctx, em, history, convCtx, userMessage, stream)
	}()
	return ch
}

func (a *Analyzer) converse(ctx context.Context, em *emitter, history []openai.ChatCompletionMessage, convCtx ConversationContext, userMessage string, stream bool) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: BuildConversationSystemPrompt(convCtx),
	})
	messages = append(messages, history...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	a.log.Info().Int("messages", len(messages)).Bool("stream", stream).Msg("Starting conversation request")

	if stream {
		var buf strings.Builder
		err := a.client.Stream(ctx, messages, func(c llm.Chunk) error {
			if c.Text == "" {
				return nil
			}
			buf.WriteString(c.Text)
			if !em.send(events.ChatChunk{Content: c.Text, Status: "streaming"}) {
				return context.Canceled
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Error().Err(err).Msg("Conversation stream failed")
			em.send(events.NewChatError(conversationErrMessage(err)))
			return
		}
		if buf.Len() > 0 {
			em.send(events.ChatChunk{Content: buf.String(), Status: events.StatusCompleted})
		}
		return
	}

	content, _, err := a.client.Complete(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.log.Error().Err(err).Msg("Conversation request failed")
		em.send(events.NewChatError(conversationErrMessage(err)))
		return
	}
	em.send(events.ChatChunk{Content: content, Status: events.StatusCompleted})
}

func conversationErrMessage(err error) string {
	return strings.Replace(userMessage(err), "分析出错", "处理对话请求失败", 1)
}

// BuildConversationSystemPrompt renders the system prompt that anchors a
// follow-up conversation to its analysis record.
func BuildConversationSystemPrompt(convCtx ConversationContext) string {
	marketName := MarketName(convCtx.MarketType)

	var stockSummary []string
	for _, code := range convCtx.StockCodes {
		info := gjson.GetBytes(convCtx.AnalysisResult, code)
		if !info.Exists() {
			continue
		}
		stockSummary = append(stockSummary, fmt.Sprintf("%s: 价格%s, 评分%s, RSI%s",
			code,
			valueOrNA(info.Get("price")),
			valueOrNA(info.Get("score")),
			valueOrNA(info.Get("rsi"))))
	}

	summaryBlock := "暂无详细数据"
	if len(stockSummary) > 0 {
		summaryBlock = strings.Join(stockSummary, "\n")
	}

	aiOutput := convCtx.AIOutput
	if aiOutput == "" {
		aiOutput = "暂无AI分析结果"
	}

	days := convCtx.AnalysisDays
	if days <= 0 {
		days = 30
	}

	return fmt.Sprintf(`你是一个专业的股票分析师助手。用户正在与你讨论关于%s的分析结果。

## 分析背景信息

**分析的股票**: %s
**市场类型**: %s
**分析周期**: %d天

**股票技术指标摘要**:
%s

**原始AI分析结果**:
%s

## 你的职责

1. **基于原始分析结果**: 你的回答应该基于上述分析背景，不要偏离原始分析的核心内容
2. **提供专业建议**: 结合技术指标和市场情况，给出专业的投资建议
3. **解释技术概念**: 如果用户询问技术指标或分析方法，请详细解释
4. **风险评估**: 始终提醒用户投资风险，强调投资需要谨慎
5. **保持一致性**: 确保你的回答与原始分析结果保持一致

## 回答要求

- 保持专业、客观的语气
- 提供具体的数据支持
- 考虑市场特点和风险因素
- 如果用户的问题超出分析范围，请说明并提供相关建议
- 始终强调投资有风险，建议用户谨慎决策

请基于以上背景信息回答用户的问题。`,
		marketName,
		strings.Join(convCtx.StockCodes, ", "),
		marketName,
		days,
		summaryBlock,
		aiOutput)
}

func valueOrNA(v gjson.Result) string {
	if !v.Exists() {
		return "N/A"
	}
	return v.String()
}
