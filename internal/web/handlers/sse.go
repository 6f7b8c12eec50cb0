package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// sseKeepAlive is the interval between comment lines on an idle stream.
const sseKeepAlive = 15 * time.Second

// eventStream writes server-sent events to one client.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// openEventStream sets the SSE headers. It writes a 500 and returns false
// when the response cannot be flushed incrementally.
func openEventStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &eventStream{w: w, flusher: flusher}, true
}

// send writes one event with a JSON payload.
func (s *eventStream) send(eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// ping writes an SSE comment so proxies keep the connection open.
func (s *eventStream) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// streamJobEvents sends a "status" event built by snapshot, then relays job
// events until the job reaches a terminal state or the client goes away.
func streamJobEvents(w http.ResponseWriter, r *http.Request, job SSEJob, snapshot func() any) {
	stream, ok := openEventStream(w)
	if !ok {
		return
	}

	events := job.AddListener()
	defer job.RemoveListener(events)

	if err := stream.send("status", snapshot()); err != nil || isJobTerminal(job.GetStatus()) {
		return
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := stream.send(event.Type, event); err != nil {
				return
			}
			if isJobTerminal(job.GetStatus()) {
				return
			}
		}
	}
}
