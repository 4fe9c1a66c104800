package db_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-events/internal/database/dbtest"
	"ms-events/internal/models"
	"ms-events/internal/participation"
	"ms-events/internal/participation/db"
)

var now = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func insertEvent(t *testing.T, bunDB *bun.DB, e models.Event) models.Event {
	t.Helper()
	e.ID = uuid.New().String()
	if e.Title == "" {
		e.Title = "Meetup"
	}
	if e.OrganizerID == "" {
		e.OrganizerID = "organizer-1"
	}
	if e.EventDate.IsZero() {
		e.EventDate = now.Add(48 * time.Hour)
	}
	if e.Status == "" {
		e.Status = models.EventStatusActive
	}
	e.Location = "Recife"
	e.CreatedAt = now
	e.UpdatedAt = now
	_, err := bunDB.NewInsert().Model(&e).Exec(context.Background())
	require.NoError(t, err)
	return e
}

func currentCount(t *testing.T, bunDB *bun.DB, eventID string) int {
	t.Helper()
	var count int
	err := bunDB.NewSelect().
		Model((*models.Event)(nil)).
		Column("current_participants").
		Where("id = ?", eventID).
		Scan(context.Background(), &count)
	require.NoError(t, err)
	return count
}

// assertCounterConsistent checks the denormalised counter against the rows.
func assertCounterConsistent(t *testing.T, bunDB *bun.DB, eventID string) {
	t.Helper()
	registered, err := bunDB.NewSelect().
		Model((*models.Participation)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", models.ParticipationRegistered).
		Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, registered, currentCount(t, bunDB, eventID))
}

func TestRegisterIncrementsCounter(t *testing.T) {
	bunDB := dbtest.Open(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()
	event := insertEvent(t, bunDB, models.Event{MaxParticipants: intPtr(3)})

	out, err := partDB.Register(ctx, event.ID, "user-1", now)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, 1, out.CurrentParticipants)
	require.NotNil(t, out.MaxParticipants)
	assert.Equal(t, 3, *out.MaxParticipants)

	status, err := partDB.GetStatus(ctx, event.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationRegistered, status)
	assertCounterConsistent(t, bunDB, event.ID)
}

func TestRegisterIsIdempotent(t *testing.T) {
	bunDB := dbtest.Open(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()
	event := insertEvent(t, bunDB, models.Event{})

	_, err := partDB.Register(ctx, event.ID, "user-1", now)
	require.NoError(t, err)

	out, err := partDB.Register(ctx, event.ID, "user-1", now)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, 1, out.CurrentParticipants)
	assertCounterConsistent(t, bunDB, event.ID)
}

func TestRegisterCapacity(t *testing.T) {
	bunDB := dbtest.Open(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()
	event := insertEvent(t, bunDB, models.Event{MaxParticipants: intPtr(3)})

	// N-1 registered → the last spot can be taken
	for i := 1; i <= 2; i++ {
		_, err := partDB.Register(ctx, event.ID, fmt.Sprintf("user-%d", i), now)
		require.NoError(t, err)
	}
	out, err := partDB.Register(ctx, event.ID, "user-3", now)
	require.NoError(t, err)
	assert.Equal(t, 3, out.CurrentParticipants)

	// N registered → rejected and nothing written
	_, err = partDB.Register(ctx, event.ID, "user-4", now)
	assert.ErrorIs(t, err, participation.ErrFullyBooked)

	status, err := partDB.GetStatus(ctx, event.ID, "user-4")
	require.NoError(t, err)
	assert.Empty(t, status)
	assert.Equal(t, 3, currentCount(t, bunDB, event.ID))
	assertCounterConsistent(t, bunDB, event.ID)
}

func TestRegisterRejections(t *testing.T) {
	bunDB := dbtest.Open(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	past := insertEvent(t, bunDB, models.Event{EventDate: now.Add(-time.Hour)})
	startingNow := insertEvent(t, bunDB, models.Event{EventDate: now})
	cancelled := insertEvent(t, bunDB, models.Event{Status: models.EventStatusCancelled})
	own := insertEvent(t, bunDB, models.Event{OrganizerID: "user-1"})

	tests := []struct {
		name    string
		eventID string
		want    error
	}{
		{"past event", past.ID, participation.ErrRegistrationClosed},
		{"event starting now", startingNow.ID, participation.ErrRegistrationClosed},
		{"cancelled event", cancelled.ID, participation.ErrRegistrationClosed},
		{"own event", own.ID, participation.ErrOrganizerSelfRegistration},
		{"missing event", "missing", participation.ErrEventNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := partDB.Register(ctx, tt.eventID, "user-1", now)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, out)

			status, err := partDB.GetStatus(ctx, tt.eventID, "user-1")
			require.NoError(t, err)
			assert.Empty(t, status, "rejected registration must be rolled back")
		})
	}
}

func TestRegisterUnknownEventWithForeignKeys(t *testing.T) {
	bunDB := dbtest.Open(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	// the schema refuses orphan participant rows
	_, err := bunDB.NewInsert().Model(&models.Participation{
		ID:           uuid.New().String(),
		EventID:      "missing",
		UserID:       "user-1",
		Status:       models.ParticipationRegistered,
		RegisteredAt: now,
	}).Exec(ctx)
	require.Error(t, err)

	out, err := partDB.Register(ctx, "missing", "user-1", now)
	assert.ErrorIs(t, err, participation.ErrEventNotFound)
	assert.Nil(t, out)
}

func TestRegisterUnknownEventOnPostgres(t *testing.T) {
	bunDB := dbtest.Postgres(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	out, err := partDB.Register(ctx, uuid.New().String(), "user-1", time.Now())
	assert.ErrorIs(t, err, participation.ErrEventNotFound)
	assert.Nil(t, out)

	event := insertEvent(t, bunDB, models.Event{EventDate: time.Now().Add(48 * time.Hour).Truncate(time.Second)})
	out, err = partDB.Register(ctx, event.ID, "user-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, out.CurrentParticipants)
}

func TestCancelDecrementsCounter(t *testing.T) {
	bunDB := dbtest.Open(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()
	event := insertEvent(t, bunDB, models.Event{MaxParticipants: intPtr(1)})

	_, err := partDB.Register(ctx, event.ID, "user-1", now)
	require.NoError(t, err)

	out, err := partDB.Cancel(ctx, event.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, 0, out.CurrentParticipants)

	status, err := partDB.GetStatus(ctx, event.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationCancelled, status)

	// the freed spot can be taken, and the cancelled row flips back
	out, err = partDB.Register(ctx, event.ID, "user-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, 1, out.CurrentParticipants)

	rows, err := bunDB.NewSelect().Model((*models.Participation)(nil)).Where("event_id = ?", event.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
	assertCounterConsistent(t, bunDB, event.ID)
}

func TestCancelWithoutRegistrationIsNoop(t *testing.T) {
	bunDB := dbtest.Open(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()
	event := insertEvent(t, bunDB, models.Event{CurrentParticipants: 0})

	out, err := partDB.Cancel(ctx, event.ID, "user-1")
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, 0, out.CurrentParticipants)

	out, err = partDB.Cancel(ctx, "missing", "user-1")
	require.NoError(t, err)
	assert.False(t, out.Changed)
}

func TestCancelAllowedAfterEventStarted(t *testing.T) {
	bunDB := dbtest.Open(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()
	event := insertEvent(t, bunDB, models.Event{EventDate: now.Add(time.Hour)})

	_, err := partDB.Register(ctx, event.ID, "user-1", now)
	require.NoError(t, err)

	// the event date has no influence on cancellation
	_, err = bunDB.NewUpdate().Model((*models.Event)(nil)).
		Set("event_date = ?", now.Add(-time.Hour)).
		Where("id = ?", event.ID).
		Exec(ctx)
	require.NoError(t, err)

	out, err := partDB.Cancel(ctx, event.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assertCounterConsistent(t, bunDB, event.ID)
}

func TestListParticipants(t *testing.T) {
	bunDB := dbtest.Open(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()
	event := insertEvent(t, bunDB, models.Event{})

	_, err := bunDB.NewInsert().Model(&models.Profile{ID: "user-1", FullName: "Carla Dias"}).Exec(ctx)
	require.NoError(t, err)

	_, err = partDB.Register(ctx, event.ID, "user-1", now)
	require.NoError(t, err)
	_, err = partDB.Register(ctx, event.ID, "user-2", now.Add(time.Minute))
	require.NoError(t, err)
	_, err = partDB.Register(ctx, event.ID, "user-3", now.Add(2*time.Minute))
	require.NoError(t, err)
	_, err = partDB.Cancel(ctx, event.ID, "user-3")
	require.NoError(t, err)

	rows, err := partDB.ListParticipants(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "user-1", rows[0].UserID)
	require.NotNil(t, rows[0].Profile)
	assert.Equal(t, "Carla Dias", rows[0].Profile.FullName)
	assert.Equal(t, "user-2", rows[1].UserID)
}

func TestConcurrentRegistrationsRespectCapacity(t *testing.T) {
	bunDB := dbtest.Postgres(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()
	event := insertEvent(t, bunDB, models.Event{EventDate: time.Now().Add(48 * time.Hour).Truncate(time.Second), MaxParticipants: intPtr(5)})

	const users = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		full     int
	)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := partDB.Register(ctx, event.ID, fmt.Sprintf("user-%d", i), time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case assert.ErrorIs(t, err, participation.ErrFullyBooked):
				full++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, accepted)
	assert.Equal(t, users-5, full)
	assert.Equal(t, 5, currentCount(t, bunDB, event.ID))
	assertCounterConsistent(t, bunDB, event.ID)
}

func TestConcurrentDuplicateRegistrationCountsOnce(t *testing.T) {
	bunDB := dbtest.Postgres(t)
	partDB := &db.DB{Bun: bunDB}
	ctx := context.Background()
	event := insertEvent(t, bunDB, models.Event{EventDate: time.Now().Add(48 * time.Hour).Truncate(time.Second)})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := partDB.Register(ctx, event.ID, "same-user", time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, currentCount(t, bunDB, event.ID))
	assertCounterConsistent(t, bunDB, event.ID)
}
