package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// kindFilter parses ?kinds=a,b. A nil result accepts every kind.
func kindFilter(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("kinds")
	if q == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, k := range strings.Split(q, ",") {
		if k = strings.TrimSpace(k); k != "" {
			filter[k] = true
		}
	}
	return filter
}

// SSEHandler streams events as server-sent events. Clients may filter with
// ?kinds=captured,scanned.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		filter := kindFilter(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.Kind] {
					continue
				}
				payload := evt.Payload
				if len(payload) == 0 {
					payload = json.RawMessage("null")
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, payload)
				flusher.Flush()
			}
		}
	}
}

// WebSocketHandler upgrades the connection and writes each event as a JSON
// text frame. The read side is drained so close frames are noticed.
func WebSocketHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := kindFilter(r)
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer func() { _ = conn.Close() }()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.Kind] {
					continue
				}
				data, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				if err := wsutil.WriteServerText(conn, data); err != nil {
					slog.Debug("websocket write failed", "remote", r.RemoteAddr, "error", err)
					return
				}
			}
		}
	}
}
