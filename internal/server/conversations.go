package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"stock-scanner/internal/analyzer"
	apperrors "stock-scanner/internal/errors"
	"stock-scanner/internal/events"
	"stock-scanner/internal/llm"
	"stock-scanner/internal/market"
	"stock-scanner/internal/store"
)

type createConversationRequest struct {
	HistoryID int64 `json:"history_id"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if !s.limiter.Allow(user) {
		s.log.Warn().Str("user", user).Err(apperrors.ErrRateLimited).Msg("Conversation creation throttled")
		respondError(w, http.StatusTooManyRequests, "对话创建过于频繁，请稍后再试")
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}

	if _, err := s.store.GetAnalysis(r.Context(), req.HistoryID); err != nil {
		if apperrors.Is(err, apperrors.ErrDataNotFound) {
			respondError(w, http.StatusNotFound, "分析记录不存在")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conv := &store.Conversation{
		ID:        uuid.NewString(),
		HistoryID: req.HistoryID,
		User:      user,
	}
	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		s.log.Error().Err(err).Msg("Creating conversation failed")
		respondError(w, http.StatusInternalServerError, "创建对话失败")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"conversation_id": conv.ID,
		"message":         "对话创建成功",
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	messages, err := s.store.ListMessages(r.Context(), conv.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

type postMessageRequest struct {
	Message string `json:"message"`
	Stream  *bool  `json:"stream"`

	APIURL     string `json:"api_url"`
	APIKey     string `json:"api_key"`
	APIModel   string `json:"api_model"`
	APITimeout string `json:"api_timeout"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "请输入消息内容")
		return
	}
	stream := true
	if req.Stream != nil {
		stream = *req.Stream
	}

	record, err := s.store.GetAnalysis(r.Context(), conv.HistoryID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "加载分析记录失败")
		return
	}

	history, err := s.store.ListMessages(r.Context(), conv.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	turns := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		turns = append(turns, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}

	if _, err := s.store.AddMessage(r.Context(), &store.Message{
		ConversationID: conv.ID,
		Role:           openai.ChatMessageRoleUser,
		Content:        req.Message,
	}); err != nil {
		respondError(w, http.StatusInternalServerError, "保存消息失败")
		return
	}

	convCtx := analyzer.ConversationContext{
		StockCodes:     record.StockCodes,
		MarketType:     market.ParseType(record.MarketType),
		AnalysisDays:   record.AnalysisDays,
		AnalysisResult: record.AnalysisResult,
		AIOutput:       record.AIOutput,
	}

	a := s.orch.Analyzer(llm.Overrides{
		URL:     req.APIURL,
		Key:     req.APIKey,
		Model:   req.APIModel,
		Timeout: req.APITimeout,
	})

	w.Header().Set("Content-Type", "application/json")
	flusher, _ := w.(http.Flusher)

	var reply string
	ch := a.Converse(r.Context(), turns, convCtx, req.Message, stream)
	for ev := range ch {
		if chunk, ok := ev.(events.ChatChunk); ok && chunk.Status == events.StatusCompleted {
			reply = chunk.Content
		}
		if err := events.Write(w, ev); err != nil {
			for range ch {
			}
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if reply != "" {
		if _, err := s.store.AddMessage(context.Background(), &store.Message{
			ConversationID: conv.ID,
			Role:           openai.ChatMessageRoleAssistant,
			Content:        reply,
		}); err != nil {
			s.log.Error().Err(err).Msg("Saving assistant reply failed")
		}
	}
}

func (s *Server) handleRandomPrompt(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"prompt": analyzer.RandomPrompt()})
}

// loadConversation resolves the {id} path segment to a conversation the
// caller owns.
func (s *Server) loadConversation(w http.ResponseWriter, r *http.Request) (*store.Conversation, bool) {
	id := r.PathValue("id")
	conv, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrDataNotFound) {
			respondError(w, http.StatusNotFound, "对话不存在")
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	if conv.User != currentUser(r) {
		respondError(w, http.StatusForbidden, "无权访问该对话")
		return nil, false
	}
	return conv, true
}

// historyID parses the numeric {id} path segment.
func historyID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
