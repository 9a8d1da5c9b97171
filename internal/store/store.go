// Package store provides data persistence implementations.
package store

import (
	"context"
	"encoding/json"
	"time"

	"stock-scanner/internal/market"
)

// AnalysisRecord is one persisted analysis transcript.
type AnalysisRecord struct {
	ID             int64           `json:"id"`
	User           string          `json:"user"`
	StockCodes     []string        `json:"stock_codes"`
	MarketType     string          `json:"market_type"`
	AnalysisDays   int             `json:"analysis_days"`
	AnalysisResult json.RawMessage `json:"analysis_result,omitempty"`
	AIOutput       string          `json:"ai_output,omitempty"`
	ChartData      json.RawMessage `json:"chart_data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Conversation is a follow-up discussion anchored to one analysis record.
type Conversation struct {
	ID        string    `json:"id"`
	HistoryID int64     `json:"history_id"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one turn of a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Favorite is one ticker a user has bookmarked.
type Favorite struct {
	ID        int64     `json:"id"`
	User      string    `json:"user"`
	StockCode string    `json:"stock_code"`
	Market    string    `json:"market_type"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore persists analysis transcripts and their follow-up
// conversations.
type HistoryStore interface {
	SaveAnalysis(ctx context.Context, rec *AnalysisRecord) (int64, error)
	GetAnalysis(ctx context.Context, id int64) (*AnalysisRecord, error)
	ListAnalyses(ctx context.Context, user string, limit int) ([]*AnalysisRecord, error)
	DeleteAnalysis(ctx context.Context, id int64) error

	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	AddMessage(ctx context.Context, msg *Message) (int64, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)

	AddFavorite(ctx context.Context, fav *Favorite) (int64, error)
	RemoveFavorite(ctx context.Context, user, stockCode string) error
	ListFavorites(ctx context.Context, user string) ([]Favorite, error)

	GetSetting(ctx context.Context, user, key string) (string, error)
	SetSetting(ctx context.Context, user, key, value string) error

	Close() error
}

// IndicatorStore persists imported indicator rows so analyses can run
// against locally loaded data.
type IndicatorStore interface {
	SaveIndicatorRows(ctx context.Context, stockCode string, mkt market.Type, rows []market.Row) error
	GetIndicatorRows(ctx context.Context, stockCode string, mkt market.Type) ([]market.Row, error)
}
