package events

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ms-events/internal/models"
)

// Message keys of validation failures; the web layer translates them.
const (
	MsgRequiredFields  = "validation.required_fields"
	MsgInvalidDate     = "validation.invalid_date"
	MsgDateInFuture    = "validation.date_in_future"
	MsgEndBeforeStart  = "validation.end_before_start"
	MsgInvalidCapacity = "validation.invalid_capacity"
	MsgCapacityBelow   = "validation.capacity_below_participants"
	MsgInvalidPrice    = "validation.invalid_price"
	MsgInvalidImageURL = "validation.invalid_image_url"
)

// ValidationError rejects a form before anything is written.
type ValidationError struct {
	Field      string
	MessageKey string
	// Data feeds the translated message template.
	Data map[string]interface{}
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.MessageKey
}

// EventForm is the raw create/edit form. Dates use the datetime-local
// format (2006-01-02T15:04) in the application timezone.
type EventForm struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	EventDate       string `json:"event_date"`
	EndDate         string `json:"end_date"`
	Location        string `json:"location"`
	Address         string `json:"address"`
	MaxParticipants string `json:"max_participants"`
	Price           string `json:"price"`
	Category        string `json:"category"`
	ImageURL        string `json:"image_url"`
}

// FormFromEvent fills a form with an existing event for editing.
func FormFromEvent(e *models.Event, loc *time.Location) EventForm {
	form := EventForm{
		Title:       e.Title,
		Description: e.Description,
		EventDate:   e.EventDate.In(loc).Format(DateTimeLocalLayout),
		Location:    e.Location,
		Address:     e.Address,
		Category:    e.Category,
		ImageURL:    e.ImageURL,
	}
	if e.EndDate != nil {
		form.EndDate = e.EndDate.In(loc).Format(DateTimeLocalLayout)
	}
	if e.MaxParticipants != nil {
		form.MaxParticipants = strconv.Itoa(*e.MaxParticipants)
	}
	if e.Price > 0 {
		form.Price = strconv.FormatFloat(e.Price, 'f', 2, 64)
	}
	return form
}

const DateTimeLocalLayout = "2006-01-02T15:04"

func parseDateTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(DateTimeLocalLayout, value, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// ValidateForm checks the form and returns the event fields it describes.
// currentParticipants is the existing count when editing, 0 when creating.
func ValidateForm(form EventForm, now time.Time, loc *time.Location, currentParticipants int) (*models.Event, error) {
	if loc == nil {
		loc = time.UTC
	}
	form = trimForm(form)

	if form.Title == "" || form.EventDate == "" || form.Location == "" {
		return nil, &ValidationError{Field: "required", MessageKey: MsgRequiredFields}
	}

	eventDate, err := parseDateTime(form.EventDate, loc)
	if err != nil {
		return nil, &ValidationError{Field: "event_date", MessageKey: MsgInvalidDate}
	}
	if !eventDate.After(now) {
		return nil, &ValidationError{Field: "event_date", MessageKey: MsgDateInFuture}
	}

	event := &models.Event{
		Title:       form.Title,
		Description: form.Description,
		EventDate:   eventDate,
		Location:    form.Location,
		Address:     form.Address,
		Category:    form.Category,
		ImageURL:    form.ImageURL,
	}

	if form.EndDate != "" {
		endDate, err := parseDateTime(form.EndDate, loc)
		if err != nil {
			return nil, &ValidationError{Field: "end_date", MessageKey: MsgInvalidDate}
		}
		if endDate.Before(eventDate) {
			return nil, &ValidationError{Field: "end_date", MessageKey: MsgEndBeforeStart}
		}
		event.EndDate = &endDate
	}

	if form.MaxParticipants != "" {
		max, err := strconv.Atoi(form.MaxParticipants)
		if err != nil || max <= 0 {
			return nil, &ValidationError{Field: "max_participants", MessageKey: MsgInvalidCapacity}
		}
		if max < currentParticipants {
			return nil, &ValidationError{
				Field:      "max_participants",
				MessageKey: MsgCapacityBelow,
				Data:       map[string]interface{}{"Count": currentParticipants},
			}
		}
		event.MaxParticipants = &max
	}

	if form.Price != "" {
		price, err := strconv.ParseFloat(strings.Replace(form.Price, ",", ".", 1), 64)
		if err != nil || price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, &ValidationError{Field: "price", MessageKey: MsgInvalidPrice}
		}
		event.Price = math.Round(price*100) / 100
	}

	if form.ImageURL != "" {
		u, err := url.Parse(form.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, &ValidationError{Field: "image_url", MessageKey: MsgInvalidImageURL}
		}
	}

	return event, nil
}

func trimForm(f EventForm) EventForm {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.EventDate = strings.TrimSpace(f.EventDate)
	f.EndDate = strings.TrimSpace(f.EndDate)
	f.Location = strings.TrimSpace(f.Location)
	f.Address = strings.TrimSpace(f.Address)
	f.MaxParticipants = strings.TrimSpace(f.MaxParticipants)
	f.Price = strings.TrimSpace(f.Price)
	f.Category = strings.TrimSpace(f.Category)
	f.ImageURL = strings.TrimSpace(f.ImageURL)
	return f
}
