package events_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-events/internal/analytics"
	"ms-events/internal/config"
	"ms-events/internal/events/query"
	events "ms-events/internal/events/service"
	"ms-events/internal/logger"
	"ms-events/internal/models"
)

// MockDB is a mock implementation of the DBLayer interface
type MockDB struct {
	mock.Mock
}

func (m *MockDB) ListEvents(ctx context.Context, spec query.Spec) ([]models.Event, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockDB) CountEvents(ctx context.Context, spec query.Spec) (int, error) {
	args := m.Called(ctx, spec)
	return args.Int(0), args.Error(1)
}

func (m *MockDB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockDB) CreateEvent(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockDB) UpdateEvent(ctx context.Context, event *models.Event) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *MockDB) DeleteEvent(ctx context.Context, id, organizerID string) (bool, error) {
	args := m.Called(ctx, id, organizerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDB) ListEventsByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	args := m.Called(ctx, organizerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockDB) ListRegisteredEvents(ctx context.Context, userID string) ([]models.Event, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockDB) ListCategories(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}

func (m *MockDB) CountUpcomingByCategory(ctx context.Context, now time.Time) (map[string]int, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockDB) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type MockCategoryCache struct {
	mock.Mock
}

func (m *MockCategoryCache) GetCategories(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}

func (m *MockCategoryCache) SetCategories(ctx context.Context, categories []models.Category) error {
	args := m.Called(ctx, categories)
	return args.Error(0)
}

type MockSummary struct {
	mock.Mock
}

func (m *MockSummary) OrganizerSummary(ctx context.Context, organizerID string, now time.Time) (*analytics.OrganizerSummary, error) {
	args := m.Called(ctx, organizerID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.OrganizerSummary), args.Error(1)
}

var (
	fixedNow  = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	organizer = &models.Principal{UserID: "organizer-1"}
	stranger  = &models.Principal{UserID: "user-9"}
	topics    = config.TopicConfig{
		EventCreated: "eventhub.events.created",
		EventUpdated: "eventhub.events.updated",
		EventDeleted: "eventhub.events.deleted",
	}
)

func newService() (*events.EventService, *MockDB, *MockPublisher) {
	db := new(MockDB)
	pub := new(MockPublisher)
	s := events.NewEventService(db, pub, topics, saoPaulo, logger.NewDiscardLogger())
	s.Now = func() time.Time { return fixedNow }
	return s, db, pub
}

func storedEvent() *models.Event {
	max := 10
	return &models.Event{
		ID:                  "event-1",
		Title:               "Rock no Parque",
		EventDate:           fixedNow.Add(72 * time.Hour),
		Location:            "Recife",
		OrganizerID:         organizer.UserID,
		MaxParticipants:     &max,
		CurrentParticipants: 6,
		Status:              models.EventStatusActive,
	}
}

func TestBrowseBuildsListing(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()
	params := query.Params{Search: "rock", Page: 2}

	db.On("ListEvents", ctx, mock.MatchedBy(func(spec query.Spec) bool {
		return spec.Page == 2 && spec.PageSize == query.PageSize
	})).Return([]models.Event{*storedEvent()}, nil)
	db.On("CountEvents", ctx, mock.Anything).Return(13, nil)

	listing, err := s.Browse(ctx, params)
	require.NoError(t, err)
	assert.Len(t, listing.Events, 1)
	assert.Equal(t, 13, listing.Total)
	assert.Equal(t, 2, listing.Page)
	assert.Equal(t, 2, listing.TotalPages)
	assert.Equal(t, params, listing.Params)
	db.AssertExpectations(t)
}

func TestBrowsePropagatesErrors(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()
	db.On("ListEvents", ctx, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := s.Browse(ctx, query.Params{})
	assert.Error(t, err)
	db.AssertNotCalled(t, "CountEvents", mock.Anything, mock.Anything)
}

func TestGetEventNotFound(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()
	db.On("GetEventByID", ctx, "missing").Return(nil, sql.ErrNoRows)

	_, err := s.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, events.ErrEventNotFound)
}

func TestCreateEventAssignsOrganizerAndPublishes(t *testing.T) {
	s, db, pub := newService()
	ctx := context.Background()

	db.On("CreateEvent", ctx, mock.AnythingOfType("*models.Event")).Return(nil)
	pub.On("Publish", mock.Anything, topics.EventCreated, mock.Anything, mock.MatchedBy(func(e models.EventLifecycleEvent) bool {
		return e.Action == "created" && e.OrganizerID == organizer.UserID
	})).Return(nil)

	event, err := s.CreateEvent(ctx, organizer, validForm())
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, organizer.UserID, event.OrganizerID)
	assert.Equal(t, models.EventStatusActive, event.Status)
	assert.Zero(t, event.CurrentParticipants)
	db.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCreateEventRejectsBeforeWriting(t *testing.T) {
	s, db, pub := newService()
	form := validForm()
	form.EventDate = "2024-06-09T10:00"

	_, err := s.CreateEvent(context.Background(), organizer, form)

	var verr *events.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, events.MsgDateInFuture, verr.MessageKey)
	db.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateEventRequiresAuthentication(t *testing.T) {
	s, _, _ := newService()
	_, err := s.CreateEvent(context.Background(), nil, validForm())
	assert.ErrorIs(t, err, events.ErrAuthenticationRequired)
}

func TestCreateEventPublishFailureIsNotFatal(t *testing.T) {
	s, db, pub := newService()
	ctx := context.Background()
	db.On("CreateEvent", ctx, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	_, err := s.CreateEvent(ctx, organizer, validForm())
	assert.NoError(t, err)
}

func TestUpdateEventKeepsCounter(t *testing.T) {
	s, db, pub := newService()
	ctx := context.Background()
	db.On("GetEventByID", ctx, "event-1").Return(storedEvent(), nil)
	db.On("UpdateEvent", ctx, mock.MatchedBy(func(e *models.Event) bool {
		return e.Title == "Workshop Go" && e.CurrentParticipants == 6 && *e.MaxParticipants == 30
	})).Return(true, nil)
	pub.On("Publish", mock.Anything, topics.EventUpdated, "event-1", mock.Anything).Return(nil)

	event, err := s.UpdateEvent(ctx, organizer, "event-1", validForm())
	require.NoError(t, err)
	assert.Equal(t, 6, event.CurrentParticipants)
	db.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestUpdateEventCapacityBelowParticipants(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()
	db.On("GetEventByID", ctx, "event-1").Return(storedEvent(), nil)
	form := validForm()
	form.MaxParticipants = "5"

	_, err := s.UpdateEvent(ctx, organizer, "event-1", form)

	var verr *events.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, events.MsgCapacityBelow, verr.MessageKey)
	db.AssertNotCalled(t, "UpdateEvent", mock.Anything, mock.Anything)
}

func TestUpdateEventCapacityRacedByRegistration(t *testing.T) {
	s, db, pub := newService()
	ctx := context.Background()
	form := validForm()
	form.MaxParticipants = "7"

	// 6 participants when the form is validated, 8 by the time it is written
	raced := storedEvent()
	raced.CurrentParticipants = 8
	db.On("GetEventByID", ctx, "event-1").Return(storedEvent(), nil).Once()
	db.On("UpdateEvent", ctx, mock.Anything).Return(false, nil)
	db.On("GetEventByID", ctx, "event-1").Return(raced, nil).Once()

	_, err := s.UpdateEvent(ctx, organizer, "event-1", form)

	var verr *events.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, events.MsgCapacityBelow, verr.MessageKey)
	assert.Equal(t, 8, verr.Data["Count"])
	db.AssertExpectations(t)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateEventDeletedMeanwhile(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()
	db.On("GetEventByID", ctx, "event-1").Return(storedEvent(), nil).Once()
	db.On("UpdateEvent", ctx, mock.Anything).Return(false, nil)
	db.On("GetEventByID", ctx, "event-1").Return(nil, sql.ErrNoRows).Once()

	_, err := s.UpdateEvent(ctx, organizer, "event-1", validForm())
	assert.ErrorIs(t, err, events.ErrEventNotFound)
}

func TestUpdateEventByStrangerIsRejected(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()
	db.On("GetEventByID", ctx, "event-1").Return(storedEvent(), nil)

	_, err := s.UpdateEvent(ctx, stranger, "event-1", validForm())
	assert.ErrorIs(t, err, events.ErrNotOrganizer)
	db.AssertNotCalled(t, "UpdateEvent", mock.Anything, mock.Anything)
}

func TestDeleteEvent(t *testing.T) {
	s, db, pub := newService()
	ctx := context.Background()
	db.On("GetEventByID", ctx, "event-1").Return(storedEvent(), nil)
	db.On("DeleteEvent", ctx, "event-1", organizer.UserID).Return(true, nil)
	pub.On("Publish", mock.Anything, topics.EventDeleted, "event-1", mock.Anything).Return(nil)

	require.NoError(t, s.DeleteEvent(ctx, organizer, "event-1"))
	db.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestDeleteEventByStranger(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()
	db.On("GetEventByID", ctx, "event-1").Return(storedEvent(), nil)

	err := s.DeleteEvent(ctx, stranger, "event-1")
	assert.ErrorIs(t, err, events.ErrNotOrganizer)
	db.AssertNotCalled(t, "DeleteEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestListCategoriesUsesCache(t *testing.T) {
	s, db, _ := newService()
	cache := new(MockCategoryCache)
	s.Categories = cache
	ctx := context.Background()
	cached := []models.Category{{ID: "1", Name: "Música"}}

	cache.On("GetCategories", ctx).Return(cached, nil)

	got, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	db.AssertNotCalled(t, "ListCategories", mock.Anything)
}

func TestListCategoriesFillsCacheOnMiss(t *testing.T) {
	s, db, _ := newService()
	cache := new(MockCategoryCache)
	s.Categories = cache
	ctx := context.Background()
	stored := []models.Category{{ID: "1", Name: "Música"}, {ID: "2", Name: "Tecnologia"}}

	cache.On("GetCategories", ctx).Return(nil, nil)
	db.On("ListCategories", ctx).Return(stored, nil)
	cache.On("SetCategories", ctx, stored).Return(nil)

	got, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	cache.AssertExpectations(t)
}

func TestListCategoriesSurvivesCacheFailure(t *testing.T) {
	s, db, _ := newService()
	cache := new(MockCategoryCache)
	s.Categories = cache
	ctx := context.Background()
	stored := []models.Category{{ID: "1", Name: "Música"}}

	cache.On("GetCategories", ctx).Return(nil, errors.New("redis down"))
	db.On("ListCategories", ctx).Return(stored, nil)
	cache.On("SetCategories", ctx, stored).Return(errors.New("redis down"))

	got, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored, got)
}

func TestCategoriesWithCounts(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()
	db.On("ListCategories", ctx).Return([]models.Category{{ID: "1", Name: "Música"}, {ID: "2", Name: "Esportes"}}, nil)
	db.On("CountUpcomingByCategory", ctx, mock.Anything).Return(map[string]int{"Música": 3}, nil)

	got, err := s.CategoriesWithCounts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].EventCount)
	assert.Equal(t, 0, got[1].EventCount)
}

func TestDashboard(t *testing.T) {
	s, db, _ := newService()
	summary := new(MockSummary)
	s.Analytics = summary
	ctx := context.Background()

	db.On("GetProfile", ctx, organizer.UserID).Return(nil, sql.ErrNoRows)
	db.On("ListEventsByOrganizer", ctx, organizer.UserID).Return([]models.Event{*storedEvent()}, nil)
	db.On("ListRegisteredEvents", ctx, organizer.UserID).Return([]models.Event{}, nil)
	summary.On("OrganizerSummary", ctx, organizer.UserID, mock.Anything).
		Return(&analytics.OrganizerSummary{OrganizerID: organizer.UserID, EventsOrganized: 1}, nil)

	d, err := s.Dashboard(ctx, organizer)
	require.NoError(t, err)
	assert.Nil(t, d.Profile)
	assert.Len(t, d.Organized, 1)
	assert.Empty(t, d.Registered)
	require.NotNil(t, d.Summary)
	assert.Equal(t, 1, d.Summary.EventsOrganized)
}

func TestDashboardWithoutOrganizedEventsSkipsSummary(t *testing.T) {
	s, db, _ := newService()
	summary := new(MockSummary)
	s.Analytics = summary
	ctx := context.Background()

	db.On("GetProfile", ctx, stranger.UserID).Return(&models.Profile{ID: stranger.UserID, FullName: "Ana"}, nil)
	db.On("ListEventsByOrganizer", ctx, stranger.UserID).Return([]models.Event{}, nil)
	db.On("ListRegisteredEvents", ctx, stranger.UserID).Return([]models.Event{*storedEvent()}, nil)

	d, err := s.Dashboard(ctx, stranger)
	require.NoError(t, err)
	assert.Equal(t, "Ana", d.Profile.FullName)
	assert.Nil(t, d.Summary)
	summary.AssertNotCalled(t, "OrganizerSummary", mock.Anything, mock.Anything, mock.Anything)
}
