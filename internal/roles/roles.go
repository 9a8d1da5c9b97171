// Package roles implements the multi-role analysis pipeline: six fixed
// analyst roles run in sequence over shared technical data, each seeing
// the accumulated output of its predecessors, followed by a synthesizer
// that merges the transcript into one recommendation.
package roles

import (
	"fmt"
	"strings"

	"stock-scanner/internal/analyzer"
	"stock-scanner/internal/market"
)

// Role is one fixed analyst persona in the pipeline.
type Role struct {
	Name string // display name carried on chunk events
	Task string // role-specific instruction block
}

// Roles execute in this exact order. Every role after the first also
// receives the accumulated prior outputs.
var Roles = []Role{
	{
		Name: "趋势分析师",
		Task: `1. 判断当前主趋势方向（上涨/下跌/震荡）及其强度
2. 分析MA5与MA20的排列关系和趋势持续性
3. 结合MACD判断趋势动能的变化
4. 给出趋势延续或反转的关键信号`,
	},
	{
		Name: "支撑压力位分析师",
		Task: `1. 基于近期高低点识别主要支撑位和压力位
2. 评估当前价格与关键价位的距离
3. 判断各价位的有效性（触及次数、成交量配合）
4. 给出突破或跌破关键价位后的目标区间`,
	},
	{
		Name: "波动率与仓位分析师",
		Task: `1. 评估当前波动率水平及其变化趋势
2. 结合波动率给出合理的单笔仓位建议
3. 分析成交量比率对波动的放大或抑制作用
4. 给出基于波动率的止损幅度建议`,
	},
	{
		Name: "交易执行规划师",
		Task: `1. 基于前面角色的分析制定具体的进场计划
2. 给出分批建仓或一次性建仓的执行方案
3. 明确止损位、止盈位和持仓周期
4. 说明执行计划的触发条件和失效条件`,
	},
	{
		Name: "反方观点审查员",
		Task: `1. 针对前面角色的结论提出最有力的反驳
2. 指出分析中可能存在的数据或逻辑盲点
3. 列举当前结论失效的具体情形
4. 评估反方情形发生的可能性`,
	},
	{
		Name: "情景推演分析师",
		Task: `1. 推演乐观、中性、悲观三种情景下的价格路径
2. 为每种情景估计大致概率和目标价位
3. 说明每种情景的确认信号和应对动作
4. 综合三种情景给出期望收益的定性判断`,
	},
}

// Synthesizer is the closing role that merges the full transcript.
var Synthesizer = Role{
	Name: "首席策略师",
	Task: `1. 综合全部角色的分析，给出统一的最终结论
2. 列出支撑结论的关键依据（引用前面角色的要点）
3. 给出具体的操作计划（进场、止损、止盈、仓位）
4. 明确主要风险提示
5. 给出结论的置信度（高/中/低）及理由

## 投资建议
请在此标题下明确给出买入、持有、卖出或观望的建议。`,
}

// contextLabel wraps one prior role's output in its labeled block.
func contextLabel(roleName, output string) string {
	return fmt.Sprintf("【%s】\n%s", roleName, strings.TrimSpace(output))
}

// BuildRolePrompt assembles the prompt for one role. priorContext is
// the concatenation of all earlier roles' labeled outputs, empty for
// the first role. The portfolio context appears only when supplied,
// which the pipeline restricts to the first role.
func BuildRolePrompt(role Role, order int, stockCode string, mkt market.Type, summary market.Summary, rowsJSON string, days int, priorContext, portfolio string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "你是%s，多角色股票分析流程中的第%d位分析角色。\n\n", role.Name, order)
	fmt.Fprintf(&b, "分析对象：%s %s\n", analyzer.MarketName(mkt), stockCode)
	fmt.Fprintf(&b, "分析周期：近%d日\n\n", days)
	fmt.Fprintf(&b, "技术指标概要：\n%s\n\n", summary.String())
	fmt.Fprintf(&b, "近%d日交易数据：\n%s\n", days, rowsJSON)

	if strings.TrimSpace(priorContext) != "" {
		fmt.Fprintf(&b, "\n此前角色的分析内容：\n%s\n", priorContext)
	}
	if strings.TrimSpace(portfolio) != "" {
		fmt.Fprintf(&b, "\n## 用户持仓背景\n%s\n", portfolio)
	}

	fmt.Fprintf(&b, "\n你的任务：\n%s\n\n", role.Task)
	b.WriteString("请输出结构化、有具体数据支持的分析，不要重复此前角色已经覆盖的内容。")

	return b.String()
}

// BuildSynthesizerPrompt assembles the closing prompt over the full
// concatenated role transcript.
func BuildSynthesizerPrompt(stockCode string, mkt market.Type, summary market.Summary, days int, transcript string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "你是%s，负责汇总多角色股票分析流程的最终结论。\n\n", Synthesizer.Name)
	fmt.Fprintf(&b, "分析对象：%s %s\n", analyzer.MarketName(mkt), stockCode)
	fmt.Fprintf(&b, "分析周期：近%d日\n\n", days)
	fmt.Fprintf(&b, "技术指标概要：\n%s\n\n", summary.String())
	fmt.Fprintf(&b, "全部角色的分析记录：\n%s\n", transcript)
	fmt.Fprintf(&b, "\n你的任务：\n%s\n", Synthesizer.Task)

	return b.String()
}
