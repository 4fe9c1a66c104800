package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/models"
)

// participantStream pushes the participant count of one event to the detail
// page whenever a registration or cancellation commits.
func (s *Server) participantStream(w http.ResponseWriter, r *http.Request) {
	event, err := s.Events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.pageFailure(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// the server write timeout would cut long-lived streams
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	setupSSEHeaders(w)
	ctx := r.Context()

	updates := s.Emitter.SubscribeToEvent(ctx, event.ID)

	// re-read after subscribing so a change made in between is not lost
	if fresh, err := s.Events.GetEvent(ctx, event.ID); err == nil {
		event = fresh
	}

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventID\":%q}\n\n", event.ID)
	s.writeCount(w, models.ParticipantCountUpdate{
		EventID:             event.ID,
		CurrentParticipants: event.CurrentParticipants,
		MaxParticipants:     event.MaxParticipants,
	})
	flusher.Flush()

	s.Logger.Debug("SSE", fmt.Sprintf("Client connected to participant stream for event: %s", event.ID))

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.writeCount(w, update)
			flusher.Flush()
		case <-ctx.Done():
			s.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from participant stream for event: %s", event.ID))
			return
		}
	}
}

func (s *Server) writeCount(w http.ResponseWriter, update models.ParticipantCountUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		s.Logger.Error("SSE", fmt.Sprintf("Failed to serialize participant update: %v", err))
		return
	}
	fmt.Fprintf(w, "event: participants\ndata: %s\n\n", data)
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}
