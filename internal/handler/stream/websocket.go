package stream

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

type outgoingMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Title     string `json:"title,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleWebSocket runs chat turns over a socket: one chatPayload in, a series
// of token frames and a closing end frame out.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.logger.WithField("remote", r.RemoteAddr)
	log.Info("websocket chat connected")

	for {
		var payload chatPayload
		if err := conn.ReadJSON(&payload); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.WithError(err).Debug("websocket read ended")
			}
			return
		}

		if strings.TrimSpace(payload.Message) == "" {
			if err := h.send(conn, outgoingMessage{Type: "error", Error: "message is required"}); err != nil {
				return
			}
			continue
		}

		writeFailed := false
		onToken := func(token string) {
			if writeFailed {
				return
			}
			if err := h.send(conn, outgoingMessage{Type: "token", Content: token}); err != nil {
				writeFailed = true
				log.WithError(err).Debug("websocket token write failed")
			}
		}

		sess, result, err := h.chatSvc.Chat(r.Context(), payload.turnRequest(), onToken)
		if err != nil || writeFailed {
			return
		}

		if err := h.send(conn, outgoingMessage{
			Type:      "end",
			SessionID: sess.ID,
			Title:     sess.Title,
			Mode:      string(result.Mode),
		}); err != nil {
			return
		}
		log.WithFields(logrus.Fields{"session_id": sess.ID, "mode": result.Mode}).Debug("websocket turn completed")
	}
}

func (h *Handler) send(conn *websocket.Conn, msg outgoingMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
