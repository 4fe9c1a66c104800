package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-events/internal/analytics"
	"ms-events/internal/config"
	"ms-events/internal/events/query"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/models"
)

var (
	ErrEventNotFound          = errors.New("event not found")
	ErrNotOrganizer           = errors.New("only the organizer can change this event")
	ErrAuthenticationRequired = errors.New("authentication required")
)

// DBLayer is implemented by events/db.DB.
type DBLayer interface {
	ListEvents(ctx context.Context, spec query.Spec) ([]models.Event, error)
	CountEvents(ctx context.Context, spec query.Spec) (int, error)
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event) error
	UpdateEvent(ctx context.Context, event *models.Event) (bool, error)
	DeleteEvent(ctx context.Context, id, organizerID string) (bool, error)
	ListEventsByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error)
	ListRegisteredEvents(ctx context.Context, userID string) ([]models.Event, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CountUpcomingByCategory(ctx context.Context, now time.Time) (map[string]int, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// CategoryCache is implemented by cache.RedisCategoryCache.
type CategoryCache interface {
	GetCategories(ctx context.Context) ([]models.Category, error)
	SetCategories(ctx context.Context, categories []models.Category) error
}

// SummaryProvider is implemented by analytics.Service.
type SummaryProvider interface {
	OrganizerSummary(ctx context.Context, organizerID string, now time.Time) (*analytics.OrganizerSummary, error)
}

// Listing is one page of the public event listing.
type Listing struct {
	Events     []models.Event `json:"events"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
	Params     query.Params   `json:"params"`
}

// Dashboard is everything the signed-in user's dashboard shows.
type Dashboard struct {
	Profile    *models.Profile             `json:"profile,omitempty"`
	Organized  []models.Event              `json:"organized"`
	Registered []models.Event              `json:"registered"`
	Summary    *analytics.OrganizerSummary `json:"summary,omitempty"`
}

type EventService struct {
	DB         DBLayer
	Categories CategoryCache
	Publisher  kafka.Publisher
	Topics     config.TopicConfig
	Analytics  SummaryProvider
	Logger     *logger.Logger
	Location   *time.Location
	Now        func() time.Time
}

func NewEventService(db DBLayer, publisher kafka.Publisher, topics config.TopicConfig, loc *time.Location, log *logger.Logger) *EventService {
	return &EventService{
		DB:        db,
		Publisher: publisher,
		Topics:    topics,
		Location:  loc,
		Logger:    log,
		Now:       time.Now,
	}
}

// now is the current instant in the application timezone, so that calendar
// based filters (today) follow local days.
func (s *EventService) now() time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	if s.Now == nil {
		return time.Now().In(loc)
	}
	return s.Now().In(loc)
}

// Browse runs the listing query and the matching count.
func (s *EventService) Browse(ctx context.Context, params query.Params) (*Listing, error) {
	spec := query.Build(params, s.now())
	s.Logger.Debug("EVENTS", fmt.Sprintf("Listing page %d filtered by %v", spec.Page, spec.PredicateNames()))

	events, err := s.DB.ListEvents(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	total, err := s.DB.CountEvents(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	return &Listing{
		Events:     events,
		Total:      total,
		Page:       spec.Page,
		PageSize:   spec.PageSize,
		TotalPages: spec.TotalPages(total),
		Params:     params,
	}, nil
}

// Upcoming returns the first page of upcoming events for the landing page.
func (s *EventService) Upcoming(ctx context.Context, limit int) ([]models.Event, error) {
	spec := query.Build(query.Params{Page: 1}, s.now())
	if limit > 0 && limit < spec.PageSize {
		spec.PageSize = limit
	}
	events, err := s.DB.ListEvents(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.DB.GetEventByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return event, nil
}

func (s *EventService) CreateEvent(ctx context.Context, principal *models.Principal, form EventForm) (*models.Event, error) {
	if principal == nil || principal.UserID == "" {
		return nil, ErrAuthenticationRequired
	}

	event, err := ValidateForm(form, s.now(), s.Location, 0)
	if err != nil {
		return nil, err
	}
	event.ID = uuid.New().String()
	event.OrganizerID = principal.UserID
	event.Status = models.EventStatusActive

	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.Logger.LogDatabase("INSERT", "events", fmt.Sprintf("event %s created by %s", event.ID, principal.UserID))
	s.publish(ctx, s.Topics.EventCreated, "created", event)
	return event, nil
}

// loadOwned returns the event when principal is its organizer.
func (s *EventService) loadOwned(ctx context.Context, principal *models.Principal, id string) (*models.Event, error) {
	if principal == nil || principal.UserID == "" {
		return nil, ErrAuthenticationRequired
	}
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.IsOrganizedBy(principal.UserID) {
		s.Logger.LogSecurity("NOT_ORGANIZER", fmt.Sprintf("user %s tried to modify event %s", principal.UserID, id))
		return nil, ErrNotOrganizer
	}
	return event, nil
}

// EditableEvent loads an event for the edit form.
func (s *EventService) EditableEvent(ctx context.Context, principal *models.Principal, id string) (*models.Event, error) {
	return s.loadOwned(ctx, principal, id)
}

func (s *EventService) UpdateEvent(ctx context.Context, principal *models.Principal, id string, form EventForm) (*models.Event, error) {
	existing, err := s.loadOwned(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	changes, err := ValidateForm(form, s.now(), s.Location, existing.CurrentParticipants)
	if err != nil {
		return nil, err
	}

	existing.Title = changes.Title
	existing.Description = changes.Description
	existing.EventDate = changes.EventDate
	existing.EndDate = changes.EndDate
	existing.Location = changes.Location
	existing.Address = changes.Address
	existing.MaxParticipants = changes.MaxParticipants
	existing.Price = changes.Price
	existing.Category = changes.Category
	existing.ImageURL = changes.ImageURL

	ok, err := s.DB.UpdateEvent(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("update event %s: %w", id, err)
	}
	if !ok {
		return nil, s.explainUpdateMiss(ctx, id, existing.MaxParticipants)
	}

	s.Logger.LogDatabase("UPDATE", "events", fmt.Sprintf("event %s updated", id))
	s.publish(ctx, s.Topics.EventUpdated, "updated", existing)
	return existing, nil
}

// explainUpdateMiss tells a capacity raced below the participant count apart
// from an event deleted since the form was validated.
func (s *EventService) explainUpdateMiss(ctx context.Context, id string, max *int) error {
	current, err := s.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if max != nil && current.CurrentParticipants > *max {
		return &ValidationError{
			Field:      "max_participants",
			MessageKey: MsgCapacityBelow,
			Data:       map[string]interface{}{"Count": current.CurrentParticipants},
		}
	}
	return ErrEventNotFound
}

func (s *EventService) DeleteEvent(ctx context.Context, principal *models.Principal, id string) error {
	existing, err := s.loadOwned(ctx, principal, id)
	if err != nil {
		return err
	}

	ok, err := s.DB.DeleteEvent(ctx, id, principal.UserID)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if !ok {
		return ErrEventNotFound
	}

	s.Logger.LogDatabase("DELETE", "events", fmt.Sprintf("event %s deleted", id))
	s.publish(ctx, s.Topics.EventDeleted, "deleted", existing)
	return nil
}

// ListCategories serves the seeded categories from the cache when possible.
func (s *EventService) ListCategories(ctx context.Context) ([]models.Category, error) {
	if s.Categories != nil {
		cached, err := s.Categories.GetCategories(ctx)
		if err != nil {
			s.Logger.Warn("CACHE", "Category cache read failed: "+err.Error())
		} else if cached != nil {
			return cached, nil
		}
	}

	categories, err := s.DB.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	if s.Categories != nil {
		if err := s.Categories.SetCategories(ctx, categories); err != nil {
			s.Logger.Warn("CACHE", "Category cache write failed: "+err.Error())
		}
	}
	return categories, nil
}

// CategoriesWithCounts pairs every category with its upcoming active events.
func (s *EventService) CategoriesWithCounts(ctx context.Context) ([]models.CategoryWithCount, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.DB.CountUpcomingByCategory(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("count events by category: %w", err)
	}

	out := make([]models.CategoryWithCount, 0, len(categories))
	for _, c := range categories {
		out = append(out, models.CategoryWithCount{Category: c, EventCount: counts[c.Name]})
	}
	return out, nil
}

func (s *EventService) Dashboard(ctx context.Context, principal *models.Principal) (*Dashboard, error) {
	if principal == nil || principal.UserID == "" {
		return nil, ErrAuthenticationRequired
	}

	profile, err := s.DB.GetProfile(ctx, principal.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	organized, err := s.DB.ListEventsByOrganizer(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("list organized events: %w", err)
	}
	registered, err := s.DB.ListRegisteredEvents(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("list registered events: %w", err)
	}

	d := &Dashboard{Profile: profile, Organized: organized, Registered: registered}
	if s.Analytics != nil && len(organized) > 0 {
		summary, err := s.Analytics.OrganizerSummary(ctx, principal.UserID, s.now())
		if err != nil {
			// the dashboard still renders without the summary
			s.Logger.Warn("ANALYTICS", "Organizer summary failed: "+err.Error())
		} else {
			d.Summary = summary
		}
	}
	return d, nil
}

func (s *EventService) publish(ctx context.Context, topic, action string, event *models.Event) {
	if s.Publisher == nil || topic == "" {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	msg := models.EventLifecycleEvent{
		Action:      action,
		EventID:     event.ID,
		OrganizerID: event.OrganizerID,
		Title:       event.Title,
		EventDate:   event.EventDate,
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.Publisher.Publish(pubCtx, topic, event.ID, msg); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for event %s: %v", topic, event.ID, err))
	}
}
