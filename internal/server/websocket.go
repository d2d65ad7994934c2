package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsEvent is sent to the browser. Type is "chunk", "done" or "error".
type wsEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleWebSocket reads chat requests from the socket and streams each
// reply back as chunk events followed by a done event.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			if err := conn.WriteJSON(wsEvent{Type: "error", Error: "message is required"}); err != nil {
				return
			}
			continue
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		reply, err := s.chat.Stream(ctx, req.SessionID, req.Message, func(chunk string) error {
			return conn.WriteJSON(wsEvent{Type: "chunk", Content: chunk})
		})
		if err != nil {
			s.logger.Error("websocket chat failed", zap.String("session", req.SessionID), zap.Error(err))
			if werr := conn.WriteJSON(wsEvent{Type: "error", SessionID: req.SessionID, Error: err.Error()}); werr != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(wsEvent{Type: "done", SessionID: req.SessionID, Response: reply}); err != nil {
			return
		}
	}
}
