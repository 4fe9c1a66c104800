package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/auth"
	"ms-events/internal/participation"
	participationsvc "ms-events/internal/participation/service"
	"ms-events/internal/utils"
)

// toggleParticipation is the form fallback of the participation button.
func (s *Server) toggleParticipation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := principal(r)
	if p == nil || p.UserID == "" {
		http.Redirect(w, r, auth.LoginRedirect(s.Auth.LoginURL, "/events/"+id), http.StatusSeeOther)
		return
	}

	result, err := s.Participation.Toggle(r.Context(), p, id)
	if err != nil {
		if errors.Is(err, participation.ErrEventNotFound) {
			s.notFound(w, r)
			return
		}
		f := classify(err)
		if f.Status >= http.StatusInternalServerError {
			s.Logger.Error("HTTP", fmt.Sprintf("Toggle participation %s: %v", id, err))
		}
		s.showEvent(w, r, f.Status, "", f.message(s.localizer(r)))
		return
	}

	msg := "registered"
	if result.State == participation.NotRegistered {
		msg = "cancelled"
	}
	http.Redirect(w, r, "/events/"+id+"?msg="+msg, http.StatusSeeOther)
}

// toggleResponse carries the optimistic view next to what the store holds,
// so the client can settle or undo the state it already displayed.
type toggleResponse struct {
	Optimistic participation.Optimistic `json:"optimistic"`
	Result     *participationsvc.Result `json:"result,omitempty"`
}

func (s *Server) apiToggleParticipation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := principal(r)

	current, err := s.Participation.Status(r.Context(), p, id)
	if err != nil {
		s.apiFailure(w, r, err)
		return
	}
	optimistic := participation.BeginToggle(current)

	if p == nil || p.UserID == "" {
		s.writeToggleFailure(w, r, optimistic, participation.ErrAuthenticationRequired)
		return
	}

	result, err := s.Participation.Toggle(r.Context(), p, id)
	if err != nil {
		s.writeToggleFailure(w, r, optimistic, err)
		return
	}

	resp := toggleResponse{Optimistic: optimistic.Confirm(result.State), Result: result}
	s.writeJSON(w, http.StatusOK, utils.SuccessResponse(s.localizer(r).T(toggleMessage(result.State)), resp))
}

// writeToggleFailure rolls the displayed state back and reports why.
func (s *Server) writeToggleFailure(w http.ResponseWriter, r *http.Request, optimistic participation.Optimistic, err error) {
	f := classify(err)
	detail := err.Error()
	if f.Status >= http.StatusInternalServerError {
		s.Logger.Error("API", fmt.Sprintf("Toggle participation %s: %v", chi.URLParam(r, "id"), err))
		detail = ""
	}
	resp := utils.ErrorResponse(f.message(s.localizer(r)), f.Code, detail)
	resp.Data = toggleResponse{Optimistic: optimistic.Rollback()}
	s.writeJSON(w, f.Status, resp)
}

func toggleMessage(state participation.State) string {
	if state == participation.Registered {
		return "message.registered"
	}
	return "message.cancelled"
}
