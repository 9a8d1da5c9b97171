package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "stock-scanner/internal/errors"
	"stock-scanner/internal/market"
)

// SQLiteStore implements HistoryStore and IndicatorStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Analysis transcripts
	CREATE TABLE IF NOT EXISTS analysis_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user TEXT NOT NULL,
		stock_codes TEXT NOT NULL,
		market_type TEXT NOT NULL,
		analysis_days INTEGER NOT NULL,
		analysis_result TEXT,
		ai_output TEXT,
		chart_data TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Follow-up conversations anchored to an analysis record
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		history_id INTEGER NOT NULL,
		user TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (history_id) REFERENCES analysis_history(id)
	);

	CREATE TABLE IF NOT EXISTS conversation_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);

	-- Bookmarked tickers
	CREATE TABLE IF NOT EXISTS favorites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user TEXT NOT NULL,
		stock_code TEXT NOT NULL,
		market_type TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user, stock_code)
	);

	-- Per-user settings
	CREATE TABLE IF NOT EXISTS settings (
		user TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user, key)
	);

	-- Imported indicator rows
	CREATE TABLE IF NOT EXISTS indicator_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stock_code TEXT NOT NULL,
		market_type TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		change REAL NOT NULL,
		ma5 REAL NOT NULL,
		ma20 REAL NOT NULL,
		rsi REAL NOT NULL,
		macd REAL NOT NULL,
		macd_signal REAL NOT NULL,
		volatility REAL NOT NULL,
		volume_ratio REAL NOT NULL,
		UNIQUE(stock_code, market_type, date)
	);

	CREATE INDEX IF NOT EXISTS idx_history_user ON analysis_history(user, created_at);
	CREATE INDEX IF NOT EXISTS idx_conversations_history ON conversations(history_id);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON conversation_messages(conversation_id, id);
	CREATE INDEX IF NOT EXISTS idx_indicator_rows_stock ON indicator_rows(stock_code, market_type, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveAnalysis persists one analysis transcript and returns its id.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, rec *AnalysisRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_history (user, stock_codes, market_type, analysis_days, analysis_result, ai_output, chart_data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.User,
		strings.Join(rec.StockCodes, ","),
		rec.MarketType,
		rec.AnalysisDays,
		nullableJSON(rec.AnalysisResult),
		rec.AIOutput,
		nullableJSON(rec.ChartData),
	)
	if err != nil {
		return 0, fmt.Errorf("saving analysis: %w", err)
	}
	return res.LastInsertId()
}

// GetAnalysis loads one analysis transcript by id.
func (s *SQLiteStore) GetAnalysis(ctx context.Context, id int64) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user, stock_codes, market_type, analysis_days, analysis_result, ai_output, chart_data, created_at
		FROM analysis_history WHERE id = ?`, id)
	rec, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrDataNotFound
	}
	return rec, err
}

// ListAnalyses returns a user's transcripts, newest first.
func (s *SQLiteStore) ListAnalyses(ctx context.Context, user string, limit int) ([]*AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user, stock_codes, market_type, analysis_days, analysis_result, ai_output, chart_data, created_at
		FROM analysis_history WHERE user = ? ORDER BY created_at DESC, id DESC LIMIT ?`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	var out []*AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteAnalysis removes one transcript together with its follow-up
// conversations and their messages.
func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM conversation_messages WHERE conversation_id IN
			(SELECT id FROM conversations WHERE history_id = ?)`, id); err != nil {
		return fmt.Errorf("deleting conversation messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE history_id = ?`, id); err != nil {
		return fmt.Errorf("deleting conversations: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM analysis_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrDataNotFound
	}
	return tx.Commit()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row scannable) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	var codes string
	var result, chart sql.NullString
	if err := row.Scan(&rec.ID, &rec.User, &codes, &rec.MarketType, &rec.AnalysisDays, &result, &rec.AIOutput, &chart, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if codes != "" {
		rec.StockCodes = strings.Split(codes, ",")
	}
	if result.Valid && result.String != "" {
		rec.AnalysisResult = json.RawMessage(result.String)
	}
	if chart.Valid && chart.String != "" {
		rec.ChartData = json.RawMessage(chart.String)
	}
	return &rec, nil
}

func nullableJSON(data json.RawMessage) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

// CreateConversation records a new follow-up conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, history_id, user) VALUES (?, ?, ?)`,
		conv.ID, conv.HistoryID, conv.User)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}
	return nil
}

// GetConversation loads one conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, history_id, user, created_at FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.HistoryID, &conv.User, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return &conv, nil
}

// AddMessage appends one turn to a conversation.
func (s *SQLiteStore) AddMessage(ctx context.Context, msg *Message) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (conversation_id, role, content) VALUES (?, ?, ?)`,
		msg.ConversationID, msg.Role, msg.Content)
	if err != nil {
		return 0, fmt.Errorf("adding message: %w", err)
	}
	return res.LastInsertId()
}

// ListMessages returns a conversation's turns in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM conversation_messages WHERE conversation_id = ? ORDER BY id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// AddFavorite bookmarks a ticker for a user.
func (s *SQLiteStore) AddFavorite(ctx context.Context, fav *Favorite) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO favorites (user, stock_code, market_type) VALUES (?, ?, ?)`,
		fav.User, fav.StockCode, fav.Market)
	if err != nil {
		return 0, fmt.Errorf("adding favorite: %w", err)
	}
	return res.LastInsertId()
}

// RemoveFavorite drops a bookmark.
func (s *SQLiteStore) RemoveFavorite(ctx context.Context, user, stockCode string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE user = ? AND stock_code = ?`, user, stockCode)
	if err != nil {
		return fmt.Errorf("removing favorite: %w", err)
	}
	return nil
}

// ListFavorites returns a user's bookmarks, newest first.
func (s *SQLiteStore) ListFavorites(ctx context.Context, user string) ([]Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user, stock_code, market_type, created_at
		FROM favorites WHERE user = ? ORDER BY created_at DESC, id DESC`, user)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	defer rows.Close()

	var out []Favorite
	for rows.Next() {
		var fav Favorite
		if err := rows.Scan(&fav.ID, &fav.User, &fav.StockCode, &fav.Market, &fav.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, fav)
	}
	return out, rows.Err()
}

// GetSetting reads one per-user setting.
func (s *SQLiteStore) GetSetting(ctx context.Context, user, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE user = ? AND key = ?`, user, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", apperrors.ErrDataNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading setting: %w", err)
	}
	return value, nil
}

// SetSetting upserts one per-user setting.
func (s *SQLiteStore) SetSetting(ctx context.Context, user, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (user, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		user, key, value)
	if err != nil {
		return fmt.Errorf("writing setting: %w", err)
	}
	return nil
}

// SaveIndicatorRows upserts imported indicator rows for a ticker.
func (s *SQLiteStore) SaveIndicatorRows(ctx context.Context, stockCode string, mkt market.Type, rows []market.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO indicator_rows (stock_code, market_type, date, open, high, low, close, volume, change, ma5, ma20, rsi, macd, macd_signal, volatility, volume_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stock_code, market_type, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low, close = excluded.close,
			volume = excluded.volume, change = excluded.change, ma5 = excluded.ma5, ma20 = excluded.ma20,
			rsi = excluded.rsi, macd = excluded.macd, macd_signal = excluded.macd_signal,
			volatility = excluded.volatility, volume_ratio = excluded.volume_ratio`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, stockCode, string(mkt), r.Date,
			r.Open, r.High, r.Low, r.Close, r.Volume, r.Change,
			r.MA5, r.MA20, r.RSI, r.MACD, r.MACDSignal, r.Volatility, r.VolumeRatio); err != nil {
			return fmt.Errorf("upserting row %s: %w", r.Date, err)
		}
	}

	return tx.Commit()
}

// GetIndicatorRows loads a ticker's indicator rows in date order.
func (s *SQLiteStore) GetIndicatorRows(ctx context.Context, stockCode string, mkt market.Type) ([]market.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume, change, ma5, ma20, rsi, macd, macd_signal, volatility, volume_ratio
		FROM indicator_rows WHERE stock_code = ? AND market_type = ? ORDER BY date`, stockCode, string(mkt))
	if err != nil {
		return nil, fmt.Errorf("loading indicator rows: %w", err)
	}
	defer rows.Close()

	var out []market.Row
	for rows.Next() {
		var r market.Row
		if err := rows.Scan(&r.Date, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume, &r.Change,
			&r.MA5, &r.MA20, &r.RSI, &r.MACD, &r.MACDSignal, &r.Volatility, &r.VolumeRatio); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
