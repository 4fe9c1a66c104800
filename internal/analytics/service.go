package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/uptrace/bun"

	"ms-events/internal/models"
)

// Service handles analytics operations
type Service struct {
	db *DB
}

// NewService creates a new analytics service
func NewService(db *bun.DB) *Service {
	return &Service{db: NewDB(db)}
}

// OrganizerSummary is shown on the organizer's dashboard.
type OrganizerSummary struct {
	OrganizerID        string  `json:"organizer_id"`
	EventsOrganized    int     `json:"events_organized"`
	UpcomingEvents     int     `json:"upcoming_events"`
	TotalRegistrations int     `json:"total_registrations"`
	FullyBookedEvents  int     `json:"fully_booked_events"`
	AverageFillRate    float64 `json:"average_fill_rate"`
}

// DailyRegistrations contains registrations for a single day
type DailyRegistrations struct {
	Date          string `json:"date"`
	Registrations int    `json:"registrations"`
}

// OrganizerSummary aggregates the organizer's events. AverageFillRate only
// considers events with a capacity and is rounded to two decimals.
func (s *Service) OrganizerSummary(ctx context.Context, organizerID string, now time.Time) (*OrganizerSummary, error) {
	totals, err := s.db.GetOrganizerTotals(ctx, organizerID, now)
	if err != nil {
		return nil, fmt.Errorf("organizer totals: %w", err)
	}

	return &OrganizerSummary{
		OrganizerID:        organizerID,
		EventsOrganized:    totals.EventsOrganized,
		UpcomingEvents:     totals.UpcomingEvents,
		TotalRegistrations: totals.TotalRegistrations,
		FullyBookedEvents:  totals.FullyBookedEvents,
		AverageFillRate:    math.Round(totals.AverageFillRate*100) / 100,
	}, nil
}

func (s *Service) DailyRegistrations(ctx context.Context, eventID string) ([]DailyRegistrations, error) {
	rows, err := s.db.GetDailyRegistrations(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("daily registrations: %w", err)
	}

	out := make([]DailyRegistrations, 0, len(rows))
	for _, r := range rows {
		out = append(out, DailyRegistrations{
			Date:          r.Day.Format("2006-01-02"),
			Registrations: r.Registrations,
		})
	}
	return out, nil
}

// EventFillRate returns current/max for events with a capacity. ok is false
// for events without one.
func EventFillRate(e *models.Event) (rate float64, ok bool) {
	if e == nil || e.MaxParticipants == nil || *e.MaxParticipants <= 0 {
		return 0, false
	}
	return float64(e.CurrentParticipants) / float64(*e.MaxParticipants), true
}
