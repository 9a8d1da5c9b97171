package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"stock-scanner/internal/market"
)

// marketNames maps market types to their display names used in prompts.
var marketNames = map[market.Type]string{
	market.TypeA:   "A股",
	market.TypeHK:  "港股",
	market.TypeUS:  "美股",
	market.TypeETF: "ETF基金",
	market.TypeLOF: "LOF基金",
}

// MarketName returns the display name for a market type.
func MarketName(t market.Type) string {
	if name, ok := marketNames[t]; ok {
		return name
	}
	return string(t)
}

const fundPromptTemplate = `分析基金 %s：

技术指标概要：
%s

近%d日交易数据：
%s

请提供：
1. 净值走势分析（包含支撑位和压力位）
2. 成交量分析及其对净值的影响
3. 风险评估（包含波动率和折溢价分析）
4. 短期和中期净值预测
5. 关键价格位分析
6. 申购赎回建议（包含止损位）

请基于技术指标和市场表现进行分析，给出具体数据支持。`

const usPromptTemplate = `分析美股 %s：

技术指标概要：
%s

近%d日交易数据：
%s

请提供：
1. 趋势分析（包含支撑位和压力位，美元计价）
2. 成交量分析及其含义
3. 风险评估（包含波动率和美股市场特有风险）
4. 短期和中期目标价位（美元）
5. 关键技术位分析
6. 具体交易建议（包含止损位）

请基于技术指标和美股市场特点进行分析，给出具体数据支持。`

const hkPromptTemplate = `分析港股 %s：

技术指标概要：
%s

近%d日交易数据：
%s

请提供：
1. 趋势分析（包含支撑位和压力位，港币计价）
2. 成交量分析及其含义
3. 风险评估（包含波动率和港股市场特有风险）
4. 短期和中期目标价位（港币）
5. 关键技术位分析
6. 具体交易建议（包含止损位）

请基于技术指标和港股市场特点进行分析，给出具体数据支持。`

const aSharePromptTemplate = `分析A股 %s：

技术指标概要：
%s

近%d日交易数据：
%s

请提供：
1. 趋势分析（包含支撑位和压力位）
2. 成交量分析及其含义
3. 风险评估（包含波动率分析）
4. 短期和中期目标价位
5. 关键技术位分析
6. 具体交易建议（包含止损位）

请基于技术指标和A股市场特点进行分析，给出具体数据支持。`

// portfolioHeading delimits user-supplied portfolio context inside a prompt.
const portfolioHeading = "## 用户持仓背景"

// BuildPrompt assembles the market-specific analysis prompt. The
// optional portfolio context is appended verbatim under its own heading.
func BuildPrompt(stockCode string, mkt market.Type, summary market.Summary, rows []market.Row, days int, portfolio string) string {
	rowsJSON := marshalRows(rows)

	var template string
	switch {
	case mkt.IsFund():
		template = fundPromptTemplate
	case mkt == market.TypeUS:
		template = usPromptTemplate
	case mkt == market.TypeHK:
		template = hkPromptTemplate
	default:
		template = aSharePromptTemplate
	}

	prompt := fmt.Sprintf(template, stockCode, summary.String(), days, rowsJSON)
	if strings.TrimSpace(portfolio) != "" {
		prompt += fmt.Sprintf("\n\n%s\n%s", portfolioHeading, portfolio)
	}
	return prompt
}

func marshalRows(rows []market.Row) string {
	data, err := json.Marshal(rows)
	if err != nil {
		return "[]"
	}
	return string(data)
}
