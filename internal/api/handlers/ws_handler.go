package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

// WSHandler streams estimation status events to the mini-app while a
// photo batch is being processed.
type WSHandler struct {
	photos   services.PhotoService
	redis    *redis.Client
	upgrader websocket.Upgrader
}

func NewWSHandler(photos services.PhotoService, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		photos: photos,
		redis:  rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// EstimateWS relays `estimate:<photo_id>:status` pub/sub events to the
// client and closes once a terminal status has been forwarded.
func (h *WSHandler) EstimateWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	photoID := c.Param("photo_id")
	if photoID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.EstimateWS", "missing photo_id", nil))
		return
	}

	// authorize photo ownership
	photo, err := h.photos.Get(c.Request.Context(), photoID)
	if err != nil {
		writeError(c, err)
		return
	}
	if photo.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "WSHandler.EstimateWS", "forbidden", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	statusCh := "estimate:" + photoID + ":status"
	pubsub := h.redis.Subscribe(ctx, statusCh)
	defer pubsub.Close()

	// reader: only watches for the client going away
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				return
			}
		}
	}()

	// writer: Redis Pub/Sub -> WS
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		default:
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
			if terminalStatus(m.Payload) {
				return
			}
		}
	}
}

func terminalStatus(payload string) bool {
	var msg struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return false
	}
	return msg.Status == "done" || msg.Status == "failed"
}
