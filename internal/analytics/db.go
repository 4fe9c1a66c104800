package analytics

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-events/internal/models"
)

// DB handles analytics database operations
type DB struct {
	bun *bun.DB
}

// NewDB creates a new analytics DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// organizerTotals is the raw aggregate row for one organizer.
type organizerTotals struct {
	EventsOrganized    int     `bun:"events_organized"`
	UpcomingEvents     int     `bun:"upcoming_events"`
	TotalRegistrations int     `bun:"total_registrations"`
	FullyBookedEvents  int     `bun:"fully_booked_events"`
	AverageFillRate    float64 `bun:"average_fill_rate"`
}

// GetOrganizerTotals aggregates every event of the organizer in one pass.
func (db *DB) GetOrganizerTotals(ctx context.Context, organizerID string, now time.Time) (*organizerTotals, error) {
	var totals organizerTotals
	err := db.bun.NewRaw(`
		SELECT
			COUNT(*) AS events_organized,
			COALESCE(SUM(CASE WHEN status = ? AND event_date >= ? THEN 1 ELSE 0 END), 0) AS upcoming_events,
			COALESCE(SUM(current_participants), 0) AS total_registrations,
			COALESCE(SUM(CASE WHEN max_participants IS NOT NULL AND current_participants >= max_participants THEN 1 ELSE 0 END), 0) AS fully_booked_events,
			COALESCE(AVG(CASE WHEN max_participants > 0 THEN CAST(current_participants AS FLOAT) / max_participants END), 0) AS average_fill_rate
		FROM
			events
		WHERE
			organizer_id = ?`,
		models.EventStatusActive, now, organizerID).
		Scan(ctx, &totals)
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// DailyRegistrationData is one day of active registrations for an event.
type DailyRegistrationData struct {
	Day           time.Time `bun:"day"`
	Registrations int       `bun:"registrations"`
}

// GetDailyRegistrations groups the event's current registrations by the day they were made.
func (db *DB) GetDailyRegistrations(ctx context.Context, eventID string) ([]DailyRegistrationData, error) {
	var rows []DailyRegistrationData
	err := db.bun.NewRaw(`
		SELECT
			DATE(registered_at) AS day,
			COUNT(*) AS registrations
		FROM
			event_participants
		WHERE
			event_id = ? AND status = ?
		GROUP BY
			DATE(registered_at)
		ORDER BY
			day`,
		eventID, models.ParticipationRegistered).
		Scan(ctx, &rows)
	return rows, err
}
