// Package events defines the newline-delimited JSON wire protocol
// emitted by the analysis pipelines. Each event kind is a distinct
// variant that serializes to the flat optional-field JSON shape clients
// consume; call sites never build ad hoc maps.
package events

import (
	"encoding/json"
	"fmt"
	"io"

	"stock-scanner/internal/market"
)

// Lifecycle status values carried on the `status` key.
const (
	StatusWaiting   = "waiting"
	StatusAnalyzing = "analyzing"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Stream types carried by the leading event of a response.
const (
	StreamTypeSingle = "single"
	StreamTypeBatch  = "batch"
)

// Event is the closed set of wire events.
type Event interface {
	event()
}

// Init is the leading event of an HTTP response, declaring whether the
// stream covers one ticker or a batch.
type Init struct {
	StreamType string   `json:"stream_type"`
	StockCode  string   `json:"stock_code,omitempty"`
	StockCodes []string `json:"stock_codes,omitempty"`
}

func (Init) event() {}

// NewSingleInit builds the leading event for a one-ticker stream.
func NewSingleInit(stockCode string) Init {
	return Init{StreamType: StreamTypeSingle, StockCode: stockCode}
}

// NewBatchInit builds the leading event for a multi-ticker stream.
func NewBatchInit(stockCodes []string) Init {
	return Init{StreamType: StreamTypeBatch, StockCodes: stockCodes}
}

// OrchestratorInit announces the resolved preset and a request-scoped
// analysis identifier used for client-side correlation only.
type OrchestratorInit struct {
	Orchestrator OrchestratorInfo `json:"orchestrator"`
}

// OrchestratorInfo is the nested payload of an OrchestratorInit event.
type OrchestratorInfo struct {
	PresetID   string `json:"preset_id"`
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
}

func (OrchestratorInit) event() {}

// NewOrchestratorInit builds the orchestrator announcement event.
func NewOrchestratorInit(presetID, analysisID string) OrchestratorInit {
	return OrchestratorInit{Orchestrator: OrchestratorInfo{
		PresetID:   presetID,
		AnalysisID: analysisID,
		Status:     "initialized",
	}}
}

// Snapshot carries the indicator classifications and technical score for
// a ticker before its narrative begins.
type Snapshot struct {
	StockCode      string  `json:"stock_code"`
	Status         string  `json:"status"`
	Score          int     `json:"score"`
	Recommendation string  `json:"recommendation"`
	Price          float64 `json:"price"`
	PriceChange    float64 `json:"price_change"`
	RSI            float64 `json:"rsi"`
	MATrend        string  `json:"ma_trend"`
	MACDSignal     string  `json:"macd_signal"`
	VolumeStatus   string  `json:"volume_status"`
}

func (Snapshot) event() {}

// NewSnapshot builds a waiting-status snapshot event from indicator data.
func NewSnapshot(stockCode string, snap market.Snapshot, score int, recommendation string) Snapshot {
	return Snapshot{
		StockCode:      stockCode,
		Status:         StatusWaiting,
		Score:          score,
		Recommendation: recommendation,
		Price:          snap.Price,
		PriceChange:    snap.PriceChange,
		RSI:            snap.RSI,
		MATrend:        snap.MATrend,
		MACDSignal:     snap.MACDSignal,
		VolumeStatus:   snap.VolumeState,
	}
}

// Chart carries the trailing window of indicator rows for charting.
type Chart struct {
	StockCode string       `json:"stock_code"`
	Status    string       `json:"status"`
	ChartData []market.Row `json:"chart_data"`
}

func (Chart) event() {}

// NewChart builds an analyzing-status chart-data event.
func NewChart(stockCode string, rows []market.Row) Chart {
	return Chart{StockCode: stockCode, Status: StatusAnalyzing, ChartData: rows}
}

// Chunk relays one incremental piece of model narrative. Role and Order
// are set only by the multi-role pipeline.
type Chunk struct {
	StockCode string `json:"stock_code"`
	Text      string `json:"ai_analysis_chunk"`
	Role      string `json:"role,omitempty"`
	Order     int    `json:"order,omitempty"`
	Status    string `json:"status"`
}

func (Chunk) event() {}

// NewChunk builds a plain narrative chunk event.
func NewChunk(stockCode, text string) Chunk {
	return Chunk{StockCode: stockCode, Text: text, Status: StatusAnalyzing}
}

// NewRoleChunk builds a narrative chunk attributed to one pipeline role.
func NewRoleChunk(stockCode, text, role string, order int) Chunk {
	return Chunk{StockCode: stockCode, Text: text, Role: role, Order: order, Status: StatusAnalyzing}
}

// Completion closes a ticker's narrative with the final score and
// recommendation. Analysis and the indicator fields are present only on
// the non-streaming path, where no chunks preceded the completion.
type Completion struct {
	StockCode      string      `json:"stock_code"`
	Status         string      `json:"status"`
	Score          int         `json:"score"`
	Recommendation string      `json:"recommendation"`
	Analysis       string      `json:"analysis,omitempty"`
	Price          *float64    `json:"price,omitempty"`
	PriceChange    *float64    `json:"price_change,omitempty"`
	RSI            *float64    `json:"rsi,omitempty"`
	MATrend        string      `json:"ma_trend,omitempty"`
	MACDSignal     string      `json:"macd_signal,omitempty"`
	VolumeStatus   string      `json:"volume_status,omitempty"`
	AnalysisDate   string      `json:"analysis_date,omitempty"`
	TokenUsage     *TokenUsage `json:"token_usage,omitempty"`
}

func (Completion) event() {}

// NewCompletion builds the completion event for a streamed narrative.
func NewCompletion(stockCode string, score int, recommendation string, usage *TokenUsage) Completion {
	return Completion{
		StockCode:      stockCode,
		Status:         StatusCompleted,
		Score:          score,
		Recommendation: recommendation,
		TokenUsage:     usage,
	}
}

// NewFullCompletion builds the completion event for the non-streaming
// path, carrying the full analysis text and the indicator snapshot.
func NewFullCompletion(stockCode, analysis string, score int, recommendation string,
	snap market.Snapshot, analysisDate string, usage *TokenUsage) Completion {

	price := snap.Price
	change := snap.PriceChange
	rsi := snap.RSI
	return Completion{
		StockCode:      stockCode,
		Status:         StatusCompleted,
		Score:          score,
		Recommendation: recommendation,
		Analysis:       analysis,
		Price:          &price,
		PriceChange:    &change,
		RSI:            &rsi,
		MATrend:        snap.MATrend,
		MACDSignal:     snap.MACDSignal,
		VolumeStatus:   snap.VolumeState,
		AnalysisDate:   analysisDate,
		TokenUsage:     usage,
	}
}

// Error terminates a ticker's stream with a user-facing message.
type Error struct {
	StockCode string `json:"stock_code"`
	Message   string `json:"error"`
	Status    string `json:"status"`
}

func (Error) event() {}

// NewError builds an error-status event.
func NewError(stockCode, message string) Error {
	return Error{StockCode: stockCode, Message: message, Status: StatusError}
}

// NewErrorf builds an error-status event with a formatted message.
func NewErrorf(stockCode, format string, args ...interface{}) Error {
	return Error{StockCode: stockCode, Message: fmt.Sprintf(format, args...), Status: StatusError}
}

// ChatChunk relays one incremental piece of a follow-up conversation reply.
type ChatChunk struct {
	Content string `json:"content,omitempty"`
	Status  string `json:"status"`
}

func (ChatChunk) event() {}

// ChatError terminates a follow-up conversation stream. Unlike analysis
// events it carries no stock code; a conversation spans the whole record.
type ChatError struct {
	Message string `json:"error"`
	Status  string `json:"status"`
}

func (ChatError) event() {}

// NewChatError builds a conversation error event.
func NewChatError(message string) ChatError {
	return ChatError{Message: message, Status: StatusError}
}

// Marshal serializes an event to its single-line JSON form without the
// trailing newline.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Write emits one event as a newline-terminated JSON line.
func Write(w io.Writer, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling %T event: %w", e, err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
