package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/auth"
	events "ms-events/internal/events/service"
	"ms-events/internal/events/query"
	"ms-events/internal/models"
	"ms-events/internal/participation"
	"ms-events/internal/web/views"
)

const upcomingOnHome = 6

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	pc := s.pageContext(r)
	status, errMsg := http.StatusOK, ""

	upcoming, err := s.Events.Upcoming(r.Context(), upcomingOnHome)
	if err != nil {
		s.Logger.Error("HTTP", "Home upcoming events: "+err.Error())
		status, errMsg = http.StatusInternalServerError, pc.L.T("error.load_failed")
	}
	categories, err := s.Events.CategoriesWithCounts(r.Context())
	if err != nil {
		s.Logger.Error("HTTP", "Home categories: "+err.Error())
		status, errMsg = http.StatusInternalServerError, pc.L.T("error.load_failed")
	}

	s.render(w, r, status, pc.L.T("home.title"), views.Home(pc, upcoming, categories, errMsg))
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	pc := s.pageContext(r)
	status, errMsg := http.StatusOK, ""

	categories, err := s.Events.CategoriesWithCounts(r.Context())
	if err != nil {
		s.Logger.Error("HTTP", "Categories: "+err.Error())
		status, errMsg = http.StatusInternalServerError, pc.L.T("error.load_failed")
	}
	s.render(w, r, status, pc.L.T("categories.title"), views.Categories(pc, categories, errMsg))
}

// listEvents renders the listing. A failed query still renders the filters
// so the user can change them.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	pc := s.pageContext(r)
	params := query.ParseParams(r.URL.Query())
	status, errMsg := http.StatusOK, ""

	listing, err := s.Events.Browse(r.Context(), params)
	if err != nil {
		s.Logger.Error("HTTP", "Browse events: "+err.Error())
		status, errMsg = http.StatusInternalServerError, pc.L.T("error.load_failed")
	}
	categories, err := s.Events.ListCategories(r.Context())
	if err != nil {
		s.Logger.Warn("HTTP", "Listing categories: "+err.Error())
	}

	s.render(w, r, status, pc.L.T("events.title"), views.EventList(pc, listing, params, categories, errMsg))
}

func (s *Server) eventDetail(w http.ResponseWriter, r *http.Request) {
	s.showEvent(w, r, http.StatusOK, s.flash(r), "")
}

// showEvent renders the detail page with an optional message, used both for
// GET and after a rejected participation change.
func (s *Server) showEvent(w http.ResponseWriter, r *http.Request, status int, message, errMsg string) {
	pc := s.pageContext(r)
	id := chi.URLParam(r, "id")

	event, err := s.Events.GetEvent(r.Context(), id)
	if err != nil {
		s.pageFailure(w, r, err)
		return
	}

	d := views.DetailData{
		Event:    event,
		State:    participation.NotRegistered,
		ShareURL: s.QR.EventURL(event.ID),
		Message:  message,
		Error:    errMsg,
	}

	if pc.SignedIn() {
		state, err := s.Participation.Status(r.Context(), pc.Principal, event.ID)
		if err != nil {
			// the page still works; the control falls back to "register"
			s.Logger.Warn("HTTP", fmt.Sprintf("Participation status for %s: %v", event.ID, err))
		}
		d.State = state

		if event.IsOrganizedBy(pc.Principal.UserID) {
			list, err := s.Participation.Participants(r.Context(), pc.Principal, event)
			if err != nil {
				s.Logger.Warn("HTTP", fmt.Sprintf("Participants for %s: %v", event.ID, err))
			}
			d.Participants = list
			d.ShowParticipants = true
		}
	}

	s.render(w, r, status, event.Title, views.EventDetail(pc, d))
}

// pageFailure answers a read failure on a page according to the error kind.
func (s *Server) pageFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, events.ErrAuthenticationRequired), errors.Is(err, participation.ErrAuthenticationRequired):
		http.Redirect(w, r, auth.LoginRedirect(s.Auth.LoginURL, r.URL.RequestURI()), http.StatusSeeOther)
	case errors.Is(err, events.ErrNotOrganizer):
		http.Redirect(w, r, "/events/"+chi.URLParam(r, "id"), http.StatusSeeOther)
	case errors.Is(err, events.ErrEventNotFound), errors.Is(err, participation.ErrEventNotFound):
		s.notFound(w, r)
	default:
		s.Logger.Error("HTTP", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		pc := s.pageContext(r)
		s.render(w, r, http.StatusInternalServerError, pc.AppName, views.ErrorPage(pc, pc.L.T("error.load_failed")))
	}
}

func (s *Server) eventQR(w http.ResponseWriter, r *http.Request) {
	event, err := s.Events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.pageFailure(w, r, err)
		return
	}

	png, err := s.QR.GenerateEventQR(event.ID, 0)
	if err != nil {
		s.Logger.Error("QR", fmt.Sprintf("Failed to generate QR for %s: %v", event.ID, err))
		http.Error(w, "failed to generate QR code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(png)
}

func formFromRequest(r *http.Request) events.EventForm {
	get := func(key string) string { return strings.TrimSpace(r.PostFormValue(key)) }
	return events.EventForm{
		Title:           get("title"),
		Description:     r.PostFormValue("description"),
		EventDate:       get("event_date"),
		EndDate:         get("end_date"),
		Location:        get("location"),
		Address:         get("address"),
		MaxParticipants: get("max_participants"),
		Price:           get("price"),
		Category:        get("category"),
		ImageURL:        get("image_url"),
	}
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, d views.FormData) {
	pc := s.pageContext(r)
	categories, err := s.Events.ListCategories(r.Context())
	if err != nil {
		s.Logger.Warn("HTTP", "Form categories: "+err.Error())
	}
	d.Categories = categories

	title := pc.L.T("form.create_title")
	if d.EventID != "" {
		title = pc.L.T("form.edit_title")
	}
	s.render(w, r, status, title, views.EventFormPage(pc, d))
}

// formFailure re-renders the form with the submitted values. Validation
// errors name the field; anything else gets the generic save message.
func (s *Server) formFailure(w http.ResponseWriter, r *http.Request, d views.FormData, err error) {
	var verr *events.ValidationError
	if errors.As(err, &verr) {
		f := classify(err)
		d.Error = f.message(s.localizer(r))
		d.ErrorField = verr.Field
		s.renderForm(w, r, http.StatusUnprocessableEntity, d)
		return
	}
	if errors.Is(err, events.ErrAuthenticationRequired) || errors.Is(err, events.ErrNotOrganizer) ||
		errors.Is(err, events.ErrEventNotFound) {
		s.pageFailure(w, r, err)
		return
	}

	s.Logger.Error("HTTP", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	d.Error = s.localizer(r).T("error.save_failed")
	s.renderForm(w, r, http.StatusInternalServerError, d)
}

func (s *Server) createForm(w http.ResponseWriter, r *http.Request) {
	s.renderForm(w, r, http.StatusOK, views.FormData{})
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	form := formFromRequest(r)
	event, err := s.Events.CreateEvent(r.Context(), auth.PrincipalFrom(r.Context()), form)
	if err != nil {
		s.formFailure(w, r, views.FormData{Form: form}, err)
		return
	}
	http.Redirect(w, r, "/events/"+event.ID+"?msg=created", http.StatusSeeOther)
}

func (s *Server) editForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	event, err := s.Events.EditableEvent(r.Context(), auth.PrincipalFrom(r.Context()), id)
	if err != nil {
		s.pageFailure(w, r, err)
		return
	}
	s.renderForm(w, r, http.StatusOK, views.FormData{
		Form:    events.FormFromEvent(event, s.Location),
		EventID: event.ID,
	})
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	form := formFromRequest(r)
	event, err := s.Events.UpdateEvent(r.Context(), auth.PrincipalFrom(r.Context()), id, form)
	if err != nil {
		s.formFailure(w, r, views.FormData{Form: form, EventID: id}, err)
		return
	}
	http.Redirect(w, r, "/events/"+event.ID+"?msg=updated", http.StatusSeeOther)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Events.DeleteEvent(r.Context(), auth.PrincipalFrom(r.Context()), id); err != nil {
		if errors.Is(err, events.ErrAuthenticationRequired) || errors.Is(err, events.ErrNotOrganizer) ||
			errors.Is(err, events.ErrEventNotFound) {
			s.pageFailure(w, r, err)
			return
		}
		s.Logger.Error("HTTP", fmt.Sprintf("Delete event %s: %v", id, err))
		s.showEvent(w, r, http.StatusInternalServerError, "", s.localizer(r).T("error.save_failed"))
		return
	}
	http.Redirect(w, r, "/dashboard?msg=deleted", http.StatusSeeOther)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	pc := s.pageContext(r)
	d, err := s.Events.Dashboard(r.Context(), pc.Principal)
	if err != nil {
		s.pageFailure(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, pc.L.T("nav.dashboard"), views.Dashboard(pc, d, s.flash(r)))
}

// principal is the caller or nil.
func principal(r *http.Request) *models.Principal {
	return auth.PrincipalFrom(r.Context())
}
