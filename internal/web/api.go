package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/analytics"
	"ms-events/internal/events/query"
	"ms-events/internal/models"
	"ms-events/internal/participation"
	"ms-events/internal/utils"
	"ms-events/internal/web/views"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, utils.SuccessResponse("ok", map[string]string{"status": "ok"}))
}

func (s *Server) apiListEvents(w http.ResponseWriter, r *http.Request) {
	listing, err := s.Events.Browse(r.Context(), query.ParseParams(r.URL.Query()))
	if err != nil {
		s.apiFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, utils.SuccessResponse("", listing))
}

// eventView is an event as seen by the caller.
type eventView struct {
	*models.Event
	State      participation.State `json:"state"`
	Control    views.Control       `json:"control"`
	PriceLabel string              `json:"price_label"`
}

func (s *Server) apiGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.Events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.apiFailure(w, r, err)
		return
	}

	p := principal(r)
	state, err := s.Participation.Status(r.Context(), p, event.ID)
	if err != nil {
		s.apiFailure(w, r, err)
		return
	}

	l := s.localizer(r)
	s.writeJSON(w, http.StatusOK, utils.SuccessResponse("", eventView{
		Event:      event,
		State:      state,
		Control:    views.ParticipationControl(event, p, state, s.now()),
		PriceLabel: l.Price(event.Price),
	}))
}

type eventAnalytics struct {
	EventID             string                         `json:"event_id"`
	CurrentParticipants int                            `json:"current_participants"`
	MaxParticipants     *int                           `json:"max_participants,omitempty"`
	FillRate            *float64                       `json:"fill_rate,omitempty"`
	Daily               []analytics.DailyRegistrations `json:"daily_registrations"`
}

// apiEventAnalytics is only available to the event's organizer.
func (s *Server) apiEventAnalytics(w http.ResponseWriter, r *http.Request) {
	event, err := s.Events.EditableEvent(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		s.apiFailure(w, r, err)
		return
	}

	daily, err := s.Analytics.DailyRegistrations(r.Context(), event.ID)
	if err != nil {
		s.apiFailure(w, r, err)
		return
	}

	resp := eventAnalytics{
		EventID:             event.ID,
		CurrentParticipants: event.CurrentParticipants,
		MaxParticipants:     event.MaxParticipants,
		Daily:               daily,
	}
	if rate, ok := analytics.EventFillRate(event); ok {
		resp.FillRate = &rate
	}
	s.writeJSON(w, http.StatusOK, utils.SuccessResponse("", resp))
}
