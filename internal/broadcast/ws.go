package broadcast

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 * 1024
)

func (h *Hub) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and streams pool as JSON frames
// {"event": name, "data": payload}. Incoming frames are discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, pool Pool, snapshot SnapshotFunc) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("[Hub.ServeWS] upgrade failed", "pool", pool, "error", err)
		return
	}

	sub := h.Subscribe(pool)
	if sub == nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	closed := make(chan struct{})
	go readPump(conn, h.heartbeat, closed)

	if snapshot != nil {
		event, err := snapshot(r.Context())
		if err != nil {
			h.logger.Warn("[Hub.ServeWS] snapshot failed", "pool", pool, "error", err)
		} else {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.Unsubscribe(sub)
				conn.Close()
				return
			}
		}
	}

	h.writePump(conn, sub, closed)
}

// readPump drains the connection so control frames are processed and a
// client close is noticed.
func readPump(conn *websocket.Conn, heartbeat time.Duration, closed chan<- struct{}) {
	defer close(closed)

	pongWait := heartbeat * 2
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *Subscriber, closed <-chan struct{}) {
	ticker := time.NewTicker(h.heartbeat)
	defer func() {
		ticker.Stop()
		h.Unsubscribe(sub)
		conn.Close()
	}()

	for {
		select {
		case <-closed:
			return
		case <-sub.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case event := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
