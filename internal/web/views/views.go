// Package views holds the HTML pages. Markup lives in the .templ files; run
// `templ generate` after editing them.
package views

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"ms-events/internal/events/query"
	events "ms-events/internal/events/service"
	"ms-events/internal/i18n"
	"ms-events/internal/models"
	"ms-events/internal/participation"
)

// mdRenderer escapes raw HTML in descriptions (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// RenderMarkdown converts an event description to HTML, falling back to
// escaped text.
func RenderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return templ.EscapeString(md)
	}
	return buf.String()
}

// PageContext is shared by every page.
type PageContext struct {
	L         *i18n.Localizer
	Principal *models.Principal
	AppName   string
	CSRFToken string
	Path      string
	LoginURL  string
	SignUpURL string
	Now       time.Time
}

func (pc PageContext) SignedIn() bool {
	return pc.Principal != nil && pc.Principal.UserID != ""
}

// LoginLink returns to the current page after signing in.
func (pc PageContext) LoginLink() string {
	u, err := url.Parse(pc.LoginURL)
	if err != nil {
		return pc.LoginURL
	}
	q := u.Query()
	q.Set("next", pc.Path)
	u.RawQuery = q.Encode()
	return u.String()
}

// Control is what the participation area of the detail page shows.
type Control string

const (
	ControlLogin     Control = "login"
	ControlOrganizer Control = "organizer"
	ControlFinished  Control = "finished"
	ControlSoldOut   Control = "sold_out"
	ControlRegister  Control = "register"
	ControlCancel    Control = "cancel"
)

// ParticipationControl decides the control for a viewer. Registered users
// keep their cancel button after the event starts.
func ParticipationControl(e *models.Event, viewer *models.Principal, state participation.State, now time.Time) Control {
	if viewer != nil && e.IsOrganizedBy(viewer.UserID) {
		return ControlOrganizer
	}
	if state == participation.Registered {
		return ControlCancel
	}
	if e.IsPast(now) || e.Status != models.EventStatusActive {
		return ControlFinished
	}
	if e.IsFullyBooked() {
		return ControlSoldOut
	}
	if viewer == nil || viewer.UserID == "" {
		return ControlLogin
	}
	return ControlRegister
}

type DetailData struct {
	Event        *models.Event
	State        participation.State
	Participants []models.Participation
	// ShowParticipants is true for the organizer.
	ShowParticipants bool
	ShareURL         string
	Message          string
	Error            string
}

type FormData struct {
	Form       events.EventForm
	Categories []models.Category
	// EventID is empty when creating.
	EventID string
	Error   string
	// ErrorField highlights the offending input.
	ErrorField string
}

func (d FormData) editing() bool { return d.EventID != "" }

func (d FormData) title(pc PageContext) string {
	if d.editing() {
		return pc.L.T("form.edit_title")
	}
	return pc.L.T("form.create_title")
}

func (d FormData) action() string {
	if d.editing() {
		return eventPath(d.EventID) + "/edit"
	}
	return "/events"
}

func (d FormData) submitLabel(pc PageContext) string {
	if d.editing() {
		return pc.L.T("form.submit_update")
	}
	return pc.L.T("form.submit_create")
}

func (d FormData) cancelPath() string {
	if d.editing() {
		return eventPath(d.EventID)
	}
	return "/dashboard"
}

// fieldAttrs carries the per-input attributes of the event form.
func (d FormData) fieldAttrs(name, value string, required bool) templ.Attributes {
	attrs := templ.Attributes{}
	if d.ErrorField == name || (d.ErrorField == "required" && required && value == "") {
		attrs["class"] = "invalid"
	}
	if required {
		attrs["required"] = true
	}
	switch name {
	case "max_participants":
		attrs["min"] = "1"
		attrs["step"] = "1"
	case "price":
		attrs["inputmode"] = "decimal"
		attrs["placeholder"] = "0,00"
	}
	return attrs
}

func fieldLabel(pc PageContext, name string, required bool) string {
	label := pc.L.T("form." + name)
	if required {
		label += " *"
	}
	return label
}

func pageTitle(pc PageContext, title string) string {
	if title == "" {
		return pc.AppName
	}
	return title + " · " + pc.AppName
}

func userLabel(p *models.Principal) string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

func userID(p *models.Principal) string {
	if p == nil {
		return ""
	}
	return p.UserID
}

func eventPath(id string) string {
	return "/events/" + id
}

func categoryPath(name string) string {
	return "/events?category=" + url.QueryEscape(name)
}

func pagePath(l *events.Listing, page int) string {
	return "/events?" + l.Params.Values(page).Encode()
}

func pageLabel(pc PageContext, l *events.Listing) string {
	return pc.L.TData("pagination.page", map[string]interface{}{
		"Page":  strconv.Itoa(l.Page),
		"Total": strconv.Itoa(l.TotalPages),
	})
}

func participantsLabel(pc PageContext, e *models.Event) string {
	if e.MaxParticipants == nil {
		return pc.L.Plural("event.participants_unlimited", e.CurrentParticipants)
	}
	return pc.L.TData("event.participants", map[string]interface{}{
		"Current": e.CurrentParticipants,
		"Max":     *e.MaxParticipants,
	})
}

func participantHeading(pc PageContext, count int) string {
	return fmt.Sprintf("%s (%d)", pc.L.T("event.participant_list"), count)
}

func participantName(p models.Participation) string {
	if p.Profile != nil && p.Profile.FullName != "" {
		return p.Profile.FullName
	}
	return p.UserID
}

func eventWhen(pc PageContext, e *models.Event) string {
	when := pc.L.DateTime(e.EventDate, pc.Now)
	if e.EndDate != nil {
		when += " – " + pc.L.DateTime(*e.EndDate, pc.Now)
	}
	return when
}

// statusLabel is empty for events still open.
func statusLabel(pc PageContext, e *models.Event) string {
	switch {
	case e.Status != models.EventStatusActive:
		return pc.L.T("event.cancelled")
	case e.IsPast(pc.Now):
		return pc.L.T("event.finished")
	}
	return ""
}

func dashboardName(pc PageContext, d *events.Dashboard) string {
	if d.Profile != nil {
		if name := d.Profile.DisplayName(); name != "" {
			return name
		}
	}
	if pc.Principal != nil {
		return pc.Principal.Name
	}
	return ""
}

func percent(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate*100)
}

// choice is one <option> of a filter select.
type choice struct {
	Value    string
	Label    string
	Selected bool
}

func dateChoices(pc PageContext, p query.Params) []choice {
	return []choice{
		{"", pc.L.T("filter.any_date"), p.Date == ""},
		{query.DateToday, pc.L.T("filter.today"), p.Date == query.DateToday},
		{query.DateWeek, pc.L.T("filter.week"), p.Date == query.DateWeek},
		{query.DateMonth, pc.L.T("filter.month"), p.Date == query.DateMonth},
	}
}

func priceChoices(pc PageContext, p query.Params) []choice {
	return []choice{
		{"", pc.L.T("filter.any_price"), p.Price == ""},
		{query.PriceFree, pc.L.T("filter.free"), p.Price == query.PriceFree},
		{query.PricePaid, pc.L.T("filter.paid"), p.Price == query.PricePaid},
	}
}

func sortChoices(pc PageContext, p query.Params) []choice {
	keys := []string{query.SortDate, query.SortPopular, query.SortPriceLow, query.SortPriceHigh}
	out := make([]choice, 0, len(keys))
	for _, key := range keys {
		selected := p.Sort == key || (p.Sort == "" && key == query.SortDate)
		out = append(out, choice{key, pc.L.T("sort." + key), selected})
	}
	return out
}
