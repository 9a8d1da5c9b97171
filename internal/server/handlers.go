package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	apperrors "stock-scanner/internal/errors"
	"stock-scanner/internal/llm"
	"stock-scanner/internal/market"
	"stock-scanner/internal/orchestrator"
	"stock-scanner/internal/store"
)

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.store.ListAnalyses(r.Context(), currentUser(r), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": records})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := historyID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "无效的记录ID")
		return
	}
	rec, err := s.store.GetAnalysis(r.Context(), id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrDataNotFound) {
			respondError(w, http.StatusNotFound, "分析记录不存在")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec.User != currentUser(r) {
		respondError(w, http.StatusForbidden, "无权访问该记录")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := historyID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "无效的记录ID")
		return
	}
	rec, err := s.store.GetAnalysis(r.Context(), id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrDataNotFound) {
			respondError(w, http.StatusNotFound, "分析记录不存在")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec.User != currentUser(r) {
		respondError(w, http.StatusForbidden, "无权访问该记录")
		return
	}
	if err := s.store.DeleteAnalysis(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "删除成功"})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.store.ListFavorites(r.Context(), currentUser(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"favorites": favorites})
}

type favoriteRequest struct {
	StockCode  string `json:"stock_code"`
	MarketType string `json:"market_type"`
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.StockCode) == "" {
		respondError(w, http.StatusBadRequest, "请输入代码")
		return
	}
	_, err := s.store.AddFavorite(r.Context(), &store.Favorite{
		User:      currentUser(r),
		StockCode: strings.TrimSpace(req.StockCode),
		Market:    string(market.ParseType(req.MarketType)),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "收藏成功"})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if err := s.store.RemoveFavorite(r.Context(), currentUser(r), code); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "已取消收藏"})
}

type importRowsRequest struct {
	StockCode  string       `json:"stock_code"`
	MarketType string       `json:"market_type"`
	Rows       []market.Row `json:"rows"`
}

func (s *Server) handleImportIndicatorRows(w http.ResponseWriter, r *http.Request) {
	var req importRowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if strings.TrimSpace(req.StockCode) == "" || len(req.Rows) == 0 {
		respondError(w, http.StatusBadRequest, "请提供代码和数据行")
		return
	}
	if err := s.store.SaveIndicatorRows(r.Context(), strings.TrimSpace(req.StockCode), market.ParseType(req.MarketType), req.Rows); err != nil {
		s.log.Error().Err(err).Msg("Importing indicator rows failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "导入成功",
		"rows":    len(req.Rows),
	})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"presets": orchestrator.ListPresets()})
}

// handleConfig reports the effective endpoint configuration. The key is
// never echoed back, only whether one is set.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	resolved := llm.Resolve(llm.Overrides{}, llm.Overrides{
		URL:     s.cfg.API.URL,
		Key:     s.cfg.API.Key,
		Model:   s.cfg.API.Model,
		Timeout: s.cfg.API.Timeout,
	}, s.log)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"api_url":     resolved.URL,
		"api_model":   resolved.Model,
		"api_timeout": int(resolved.Timeout.Seconds()),
		"has_api_key": resolved.Key != "",
	})
}

type testConnectionRequest struct {
	APIURL     string `json:"api_url"`
	APIKey     string `json:"api_key"`
	APIModel   string `json:"api_model"`
	APITimeout string `json:"api_timeout"`
}

// handleTestAPIConnection issues one minimal chat request against the
// supplied endpoint configuration.
func (s *Server) handleTestAPIConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}

	client := s.orch.Client(llm.Overrides{
		URL:     req.APIURL,
		Key:     req.APIKey,
		Model:   req.APIModel,
		Timeout: req.APITimeout,
	})

	_, _, err := client.Complete(r.Context(), llm.UserMessage("你好"))
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API连接测试成功",
	})
}
