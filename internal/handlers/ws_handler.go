package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"peerprep/interview/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 90 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// AnswerWSHandler is the websocket transport of the answer stream. Each
// client frame carries one answer; the server replies with a meta frame,
// delta frames and a done frame. The connection closes after the session ends.
func (h *InterviewHandler) AnswerWSHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if _, err := h.interviews.Session(sessionID); err != nil {
		writeError(w, h.logger, err, "Websocket for unknown session")
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}
	conn := &wsConn{Conn: raw}
	defer conn.Close()

	logger := h.logger.With(zap.String("session_id", sessionID))
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	stopPing := conn.keepAlive()
	defer stopPing()

	for {
		var frame models.AnswerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("WebSocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		ended, err := h.streamFrames(ctx, conn, sessionID, frame.Text)
		if err != nil {
			logger.Info("WebSocket write error", zap.Error(err))
			return
		}
		if ended {
			_ = conn.writeMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "interview ended"))
			return
		}
	}
}

// streamFrames runs one exchange over the connection. It reports whether the
// session has ended; a non-nil error means the connection is unusable.
func (h *InterviewHandler) streamFrames(ctx context.Context, conn *wsConn, sessionID, text string) (bool, error) {
	ex, err := h.interviews.SubmitAnswer(ctx, sessionID, text)
	if err != nil {
		return false, h.writeErrorFrame(conn, sessionID, err)
	}
	defer ex.Close()

	meta := ex.Meta()
	if err := conn.writeJSON(models.AnswerFrame{Type: models.FrameMeta, Meta: &meta}); err != nil {
		return false, err
	}
	for {
		delta, err := ex.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false, h.writeErrorFrame(conn, sessionID, err)
		}
		if err := conn.writeJSON(models.AnswerFrame{Type: models.FrameDelta, Delta: delta}); err != nil {
			return false, err
		}
	}

	final := ex.Meta()
	return final.Ended, conn.writeJSON(models.AnswerFrame{
		Type: models.FrameDone,
		Text: ex.Question(),
		Meta: &final,
	})
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) keepAlive() (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func (c *wsConn) writeJSON(frame models.AnswerFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.WriteJSON(frame)
}

func (c *wsConn) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.WriteMessage(messageType, data)
}

func (h *InterviewHandler) writeErrorFrame(conn *wsConn, sessionID string, err error) error {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("WebSocket exchange failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return conn.writeJSON(models.AnswerFrame{Type: models.FrameError, Error: &body})
}
