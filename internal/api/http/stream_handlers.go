package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) streamAll(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "")
}

func (s *Server) streamExecution(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "executionId")
	if _, err := s.svc.GetExecution(executionID); err != nil {
		respondServiceError(w, err)
		return
	}
	s.stream(w, r, executionID)
}

// stream writes events as Server-Sent Events until the client goes away or
// the hub closes the subscription.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, executionID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}
	client, err := s.hub.Subscribe(executionID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}
	defer s.hub.Unsubscribe(client.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case event, open := <-client.Events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.logger.Error().Err(err).Str("event_id", event.ID).Msg("encode event")
				continue
			}
			_, _ = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, payload)
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
