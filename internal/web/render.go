package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/gorilla/csrf"

	"ms-events/internal/auth"
	events "ms-events/internal/events/service"
	"ms-events/internal/i18n"
	"ms-events/internal/participation"
	"ms-events/internal/utils"
	"ms-events/internal/web/views"
)

func (s *Server) localizer(r *http.Request) *i18n.Localizer {
	if l := i18n.FromContext(r.Context()); l != nil {
		return l
	}
	return s.Translator.For(s.App.DefaultLocale, s.Location)
}

func (s *Server) pageContext(r *http.Request) views.PageContext {
	return views.PageContext{
		L:         s.localizer(r),
		Principal: auth.PrincipalFrom(r.Context()),
		AppName:   s.App.Name,
		CSRFToken: csrf.Token(r),
		Path:      r.URL.RequestURI(),
		LoginURL:  s.Auth.LoginURL,
		SignUpURL: s.Auth.SignUpURL,
		Now:       s.now(),
	}
}

// render writes body inside the layout. The page is buffered so a failed
// render still produces a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	pc := s.pageContext(r)
	var buf bytes.Buffer
	if err := views.Layout(pc, title, body).Render(r.Context(), &buf); err != nil {
		s.Logger.Error("HTTP", fmt.Sprintf("render %s: %v", r.URL.Path, err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if isAPI(r) {
		s.writeError(w, http.StatusNotFound, "not_found", "not found", "error.not_found_title", r)
		return
	}
	pc := s.pageContext(r)
	s.render(w, r, http.StatusNotFound, pc.L.T("error.not_found_title"), views.NotFound(pc))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp utils.APIResponse) {
	if err := utils.WriteJSON(w, status, resp); err != nil {
		s.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, detail, messageKey string, r *http.Request) {
	s.writeJSON(w, status, utils.ErrorResponse(s.localizer(r).T(messageKey), code, detail))
}

// failure is how an error is shown to the user.
type failure struct {
	Status     int
	Code       string
	MessageKey string
	Data       map[string]interface{}
	Field      string
}

// classify maps service errors onto HTTP responses.
func classify(err error) failure {
	var verr *events.ValidationError
	switch {
	case errors.As(err, &verr):
		return failure{http.StatusUnprocessableEntity, "validation", verr.MessageKey, verr.Data, verr.Field}
	case errors.Is(err, events.ErrAuthenticationRequired), errors.Is(err, participation.ErrAuthenticationRequired):
		return failure{Status: http.StatusUnauthorized, Code: "authentication_required", MessageKey: "error.authentication_required"}
	case errors.Is(err, events.ErrNotOrganizer), errors.Is(err, participation.ErrNotOrganizer):
		return failure{Status: http.StatusForbidden, Code: "not_organizer", MessageKey: "error.not_organizer"}
	case errors.Is(err, events.ErrEventNotFound), errors.Is(err, participation.ErrEventNotFound):
		return failure{Status: http.StatusNotFound, Code: "not_found", MessageKey: "error.not_found_title"}
	case errors.Is(err, participation.ErrRegistrationClosed):
		return failure{Status: http.StatusConflict, Code: "registration_closed", MessageKey: "error.registration_closed"}
	case errors.Is(err, participation.ErrFullyBooked):
		return failure{Status: http.StatusConflict, Code: "fully_booked", MessageKey: "error.fully_booked"}
	case errors.Is(err, participation.ErrOrganizerSelfRegistration):
		return failure{Status: http.StatusConflict, Code: "organizer_self_registration", MessageKey: "error.self_registration"}
	case errors.Is(err, participation.ErrToggleInProgress):
		return failure{Status: http.StatusConflict, Code: "toggle_in_progress", MessageKey: "error.toggle_in_progress"}
	case errors.Is(err, participation.ErrOperationFailed):
		return failure{Status: http.StatusInternalServerError, Code: "operation_failed", MessageKey: "error.operation_failed"}
	}
	return failure{Status: http.StatusInternalServerError, Code: "internal", MessageKey: "error.generic"}
}

func (f failure) message(l *i18n.Localizer) string {
	return l.TData(f.MessageKey, f.Data)
}

// apiFailure writes err as a JSON error. Internal details stay in the log.
func (s *Server) apiFailure(w http.ResponseWriter, r *http.Request, err error) {
	f := classify(err)
	detail := err.Error()
	if f.Status >= http.StatusInternalServerError {
		s.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		detail = ""
	}
	s.writeJSON(w, f.Status, utils.ErrorResponse(f.message(s.localizer(r)), f.Code, detail))
}

// flash keys that may be passed back through ?msg= after a redirect.
var flashMessages = map[string]string{
	"created":    "message.event_created",
	"updated":    "message.event_updated",
	"deleted":    "message.event_deleted",
	"registered": "message.registered",
	"cancelled":  "message.cancelled",
}

func (s *Server) flash(r *http.Request) string {
	key, ok := flashMessages[r.URL.Query().Get("msg")]
	if !ok {
		return ""
	}
	return s.localizer(r).T(key)
}
