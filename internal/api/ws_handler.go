// internal/api/ws_handler.go
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"go-jarvis/internal/dialogue"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket connection wrapper with mutex for thread-safe writes
type safeWSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeWSConn) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *safeWSConn) ReadMessage() (int, []byte, error) {
	return s.conn.ReadMessage()
}

func (s *safeWSConn) CloseNormal(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (s *safeWSConn) Close() error {
	return s.conn.Close()
}

// GET /ws: every text frame is a SubmitRequest answered by a Reply. An
// exit command is answered and then the socket is closed.
func WSHandler(assistant Assistant, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawConn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "err", err)
			return
		}
		conn := &safeWSConn{conn: rawConn}
		defer conn.Close()

		ctx := c.Request.Context()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("websocket read ended", "err", err)
				}
				return
			}

			var req SubmitRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				conn.WriteJSON(gin.H{"error": "invalid JSON"})
				continue
			}
			img, err := req.image()
			if err != nil {
				conn.WriteJSON(gin.H{"error": err.Error()})
				continue
			}
			reply, err := assistant.Submit(ctx, req.Text, img)
			if errors.Is(err, dialogue.ErrEmptyUtterance) {
				continue
			}
			if err != nil {
				conn.WriteJSON(gin.H{"error": "failed to process request"})
				continue
			}
			if err := conn.WriteJSON(reply); err != nil {
				logger.Debug("websocket write failed", "err", err)
				return
			}
			if reply.Action == dialogue.ActionExit {
				_ = conn.CloseNormal("goodbye")
				return
			}
		}
	}
}
