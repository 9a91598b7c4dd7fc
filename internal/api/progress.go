package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/martinbeasnunez/superscrap-sub000/internal/ingest"
)

// progressTracker keeps the live event stream of each in-flight search so
// an SSE consumer can attach after the run started. One consumer per
// search; ingestion never waits for it.
type progressTracker struct {
	mu      sync.Mutex
	streams map[string]<-chan ingest.Event
}

func newProgressTracker() *progressTracker {
	return &progressTracker{streams: map[string]<-chan ingest.Event{}}
}

func (t *progressTracker) put(searchID string, events <-chan ingest.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streams[searchID] = events
}

// take hands the stream to a consumer and removes it from the registry.
func (t *progressTracker) take(searchID string) (<-chan ingest.Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	events, ok := t.streams[searchID]
	if ok {
		delete(t.streams, searchID)
	}
	return events, ok
}

func (t *progressTracker) drop(searchID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streams, searchID)
}

// handleProgress streams ingestion events as server-sent events until the
// run finishes or the client disconnects. Ingestion continues server-side
// either way.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "searchID")

	events, ok := s.progress.take(searchID)
	if !ok {
		writeError(w, http.StatusNotFound, "no active ingestion for this search")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-events:
			if !open {
				fmt.Fprint(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
