package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	chatService "github.com/zhouzirui/snailgpt/backend/internal/service/chat"
	"github.com/zhouzirui/snailgpt/backend/internal/service/session"
	"github.com/zhouzirui/snailgpt/backend/pkg/utils"
)

// Handler 会话管理的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	logger  logrus.FieldLogger
}

// New 创建会话处理器
func New(chatSvc *chatService.Service, logger logrus.FieldLogger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/clear", h.handleClear)
	r.Post("/clear_all", h.handleClearAll)
	r.Get("/sessions", h.handleListSessions)
	r.Get("/session/{sessionID}", h.handleGetSession)
}

// handleClear 清空当前会话（不删除已保存的记录）
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	h.chatSvc.ClearCurrent()
	utils.RespondStatus(w, "success")
}

// handleClearAll 清空当前会话并删除所有已保存的记录
func (h *Handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.ClearAll(r.Context()); err != nil {
		h.logger.WithError(err).Error("failed to clear sessions")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondStatus(w, "success")
}

// handleListSessions 列出所有会话，最近更新的在前
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chatSvc.ListSessions(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list sessions")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

// handleGetSession 加载会话并设为当前会话
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.chatSvc.OpenSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.WithError(err).Error("failed to load session")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}
