package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"stock-scanner/internal/events"
	"stock-scanner/internal/market"
)

// collector accumulates the transcript of one analysis stream while its
// events are relayed, so the finished record can be persisted.
type collector struct {
	codes   []string
	single  bool
	results map[string]json.RawMessage
	aiOut   map[string]*strings.Builder
	chart   map[string][]market.Row
}

func newCollector(codes []string) *collector {
	return &collector{
		codes:   codes,
		single:  len(codes) == 1,
		results: make(map[string]json.RawMessage),
		aiOut:   make(map[string]*strings.Builder),
		chart:   make(map[string][]market.Row),
	}
}

func (c *collector) observe(ev events.Event) {
	switch e := ev.(type) {
	case events.Snapshot:
		if data, err := json.Marshal(e); err == nil {
			c.results[e.StockCode] = data
		}
	case events.Completion:
		if data, err := json.Marshal(e); err == nil {
			c.results[e.StockCode] = data
		}
		if e.Analysis != "" {
			buf := &strings.Builder{}
			buf.WriteString(e.Analysis)
			c.aiOut[e.StockCode] = buf
		}
	case events.Chunk:
		buf, ok := c.aiOut[e.StockCode]
		if !ok {
			buf = &strings.Builder{}
			c.aiOut[e.StockCode] = buf
		}
		buf.WriteString(e.Text)
	case events.Chart:
		c.chart[e.StockCode] = e.ChartData
	}
}

func (c *collector) empty() bool {
	return len(c.results) == 0 && len(c.aiOut) == 0 && len(c.chart) == 0
}

// aiOutput renders the accumulated narrative: the bare text for a
// single ticker, labeled blocks joined per ticker for a batch.
func (c *collector) aiOutput() string {
	if c.single {
		if buf, ok := c.aiOut[c.codes[0]]; ok {
			return buf.String()
		}
		return ""
	}

	var blocks []string
	for _, code := range c.codes {
		if buf, ok := c.aiOut[code]; ok {
			blocks = append(blocks, fmt.Sprintf("【%s】\n%s", code, buf.String()))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (c *collector) analysisResult() json.RawMessage {
	if len(c.results) == 0 {
		return nil
	}
	data, err := json.Marshal(c.results)
	if err != nil {
		return nil
	}
	return data
}

func (c *collector) chartData() json.RawMessage {
	if len(c.chart) == 0 {
		return nil
	}
	data, err := json.Marshal(c.chart)
	if err != nil {
		return nil
	}
	return data
}
