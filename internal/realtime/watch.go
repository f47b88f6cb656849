// Package realtime streams freemium gate state to the viewer grid over
// WebSocket, so the countdown and lock state update without polling.
package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/castgrid/backend/internal/freemium"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	// stateInterval matches the gate's one-second tick.
	stateInterval = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the client-to-server message envelope.
type WSMessage struct {
	Event string `json:"event"` // "start" | "stop"
}

// JWTValidator resolves a token into a viewer identity and pro flag.
type JWTValidator func(token string) (viewerID string, isPro bool, err error)

// ServeWatch handles GET /ws/watch. The client sends start/stop events; the
// server pushes a gate snapshot once per second while the connection lives
// and stops the viewer's watch timer when the socket closes.
func ServeWatch(mgr *freemium.Manager, logger *zap.Logger, validate JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		viewerID, isPro, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		gate := mgr.Gate(c.Request.Context(), viewerID, isPro)
		w := &watcher{
			gate:   gate,
			conn:   conn,
			done:   make(chan struct{}),
			logger: logger,
		}
		go w.writePump()
		w.readPump()
	}
}

// watcher is a single viewer's countdown connection.
type watcher struct {
	gate   *freemium.Gate
	conn   *websocket.Conn
	done   chan struct{}
	logger *zap.Logger
}

func (w *watcher) readPump() {
	defer func() {
		// Socket teardown must release the viewer's tick timer.
		w.gate.StopWatching()
		close(w.done)
		_ = w.conn.Close()
	}()

	w.conn.SetReadLimit(4096)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WSMessage
		if err := w.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Event {
		case "start":
			w.gate.StartWatching()
		case "stop":
			w.gate.StopWatching()
		}
	}
}

func (w *watcher) writePump() {
	state := time.NewTicker(stateInterval)
	ping := time.NewTicker(pingInterval)
	defer func() {
		state.Stop()
		ping.Stop()
		_ = w.conn.Close()
	}()

	for {
		select {
		case <-w.done:
			return
		case <-state.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteJSON(gin.H{"event": "gate_state", "data": w.gate.Snapshot()}); err != nil {
				return
			}
		case <-ping.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
