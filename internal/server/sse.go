// SSE Implementation Note:
//
// This file implements Server-Sent Events directly rather than pulling in
// a third-party SSE framework (e.g. r3labs/sse): the stream has one shape
// (every EngineEvent off internal/event.Bus, newline-delimited JSON) and
// no per-client filtering, so a thin writer over http.ResponseController
// covers it without the extra dependency surface.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSEHeartbeatInterval is the interval for SSE heartbeats, keeping
// intermediate proxies from closing an otherwise-idle connection.
const SSEHeartbeatInterval = 30 * time.Second

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

// writeEvent writes an SSE data frame.
func (s *sseWriter) writeEvent(data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}
	return nil
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// events handles GET /event (§6): a single SSE stream of every EngineEvent
// published on the bus for the lifetime of the connection.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	receiver, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sse.writeHeartbeat()
		case e, ok := <-receiver.Events():
			if !ok {
				return
			}
			if err := sse.writeEvent(e); err != nil {
				return
			}
		}
	}
}
