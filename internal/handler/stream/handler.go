package stream

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	chatService "github.com/zhouzirui/snailgpt/backend/internal/service/chat"
	"github.com/zhouzirui/snailgpt/backend/pkg/utils"
)

// Handler streams chat replies to the client as they are generated.
type Handler struct {
	chatSvc  *chatService.Service
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, logger logrus.FieldLogger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册流式聊天路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/ws", h.handleWebSocket)
}

// chatPayload is the body of a chat request.
type chatPayload struct {
	Message    string `json:"message"`
	Title      string `json:"title"`
	ExtremeOpt bool   `json:"extreme_opt"`
}

func (p chatPayload) turnRequest() chatService.TurnRequest {
	return chatService.TurnRequest{
		Message: p.Message,
		Title:   p.Title,
		Extreme: p.ExtremeOpt,
	}
}

// handleChat streams the reply as a raw text/plain body. Upstream failures are
// reported inside the body, so the status is always 200 once streaming starts.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, chatService.ErrMessageRequired.Error())
		return
	}

	utils.SetupTextStreamHeaders(w)
	w.WriteHeader(http.StatusOK)

	sess, result, err := h.chatSvc.Chat(r.Context(), payload.turnRequest(), utils.TokenWriter(w))
	if err != nil {
		h.logger.WithError(err).Warn("chat turn rejected")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"mode":       result.Mode,
		"yielded":    result.YieldedAny,
	}).Debug("chat response streamed")
}
