package broadcast

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ServeSSE streams pool to w as server-sent events until the client goes
// away or the hub closes. The snapshot, when given, is written first.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, pool Pool, snapshot SnapshotFunc) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sub := h.Subscribe(pool)
	if sub == nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	rc := http.NewResponseController(w)
	send := func(event Event) error {
		// Each frame gets writeWait to drain.
		if err := rc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		if err := writeSSE(w, event); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	ctx := r.Context()
	if snapshot != nil {
		event, err := snapshot(ctx)
		if err != nil {
			h.logger.Warn("[Hub.ServeSSE] snapshot failed", "pool", pool, "error", err)
		} else if send(event) != nil {
			return
		}
	}

	ping := time.NewTicker(h.heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case event := <-sub.Events():
			if err := send(event); err != nil {
				h.logger.Debug("[Hub.ServeSSE] write failed", "pool", pool, "error", err)
				return
			}
		case <-ping.C:
			if err := send(pingEvent()); err != nil {
				return
			}
		}
	}
}

func writeSSE(w io.Writer, event Event) error {
	data := event.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data)
	return err
}
