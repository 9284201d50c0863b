package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/dashboard"
)

// writeEvent writes one server-sent event frame.
func writeEvent(w io.Writer, snap *dashboard.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\nid: %s\ndata: %s\n\n", snap.ID, data)
	return err
}

// events streams every published snapshot until the client goes away.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The server write timeout would otherwise end the stream.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug().Err(err).Msg("Cannot clear write deadline for event stream")
	}

	updates, cancel := h.dash.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn().Err(err).Msg("Event stream needs a flushable response writer")
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, snap); err != nil {
				h.logger.Debug().Err(err).Msg("Event stream closed")
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
