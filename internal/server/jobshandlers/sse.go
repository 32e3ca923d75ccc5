package jobshandlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// heartbeatInterval matches the platform's own SSE heartbeat cadence.
const heartbeatInterval = 30 * time.Second

// streamProgress serves text/event-stream with named events (progress,
// complete, error) and comment-line heartbeats, per spec §4.6/§6. This
// departs from the platform's own SSE handler (unnamed data: events,
// data-line heartbeats, no X-Accel-Buffering) to match the wire contract
// this spec requires.
func (h *Handler) streamProgress(w http.ResponseWriter, r *http.Request) {
	jobID := extractJobID(r)
	if jobID == "" {
		writeSSEError(w, "missing job id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	if _, err := h.jobs.GetJobDetail(jobID); err != nil {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSEError(w, "unknown job id")
		flusher.Flush()
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	events := h.jobs.Subscribe(ctx, jobID)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-events:
			if !open {
				return
			}
			name := "progress"
			if evt.Status == "SUCCESS" {
				name = "complete"
			} else if evt.Status == "FAILED" {
				name = "error"
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
			flusher.Flush()
			if name == "complete" || name == "error" {
				return
			}
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEError(w http.ResponseWriter, message string) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", mustJSON(map[string]string{"error": message}))
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
