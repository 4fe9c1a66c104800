package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-events/internal/events/query"
	"ms-events/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- LISTING ----------------

// ListEvents → one page of events matching the query.Spec, organizer profile joined
func (d *DB) ListEvents(ctx context.Context, spec query.Spec) ([]models.Event, error) {
	events := make([]models.Event, 0, spec.PageSize)
	q := d.Bun.NewSelect().
		Model(&events).
		Relation("Organizer")
	q = spec.ApplyPage(spec.ApplySort(spec.ApplyFilters(q)))

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

// CountEvents → number of events matching the query.Spec filters, ignoring page and sort
func (d *DB) CountEvents(ctx context.Context, spec query.Spec) (int, error) {
	q := d.Bun.NewSelect().Model((*models.Event)(nil))
	return spec.ApplyFilters(q).Count(ctx)
}

// ---------------- EVENTS ----------------

// GetEventByID returns sql.ErrNoRows when the event does not exist.
func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Relation("Organizer").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	now := time.Now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = models.EventStatusActive
	}
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

// UpdateEvent writes the organizer-editable columns. The participant counter is
// never touched here. Returns false when no row matched id and organizer, or
// when a new capacity is below the participant count at write time.
func (d *DB) UpdateEvent(ctx context.Context, event *models.Event) (bool, error) {
	event.UpdatedAt = time.Now()
	q := d.Bun.NewUpdate().
		Model(event).
		Column("title", "description", "event_date", "end_date", "location", "address",
			"max_participants", "price", "category", "image_url", "updated_at").
		Where("id = ?", event.ID).
		Where("organizer_id = ?", event.OrganizerID)
	if event.MaxParticipants != nil {
		q = q.Where("current_participants <= ?", *event.MaxParticipants)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteEvent removes the event and its participation rows in one transaction.
func (d *DB) DeleteEvent(ctx context.Context, id, organizerID string) (bool, error) {
	var deleted bool
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("id = ?", id).
			Where("organizer_id = ?", organizerID).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		deleted = true

		_, err = tx.NewDelete().
			Model((*models.Participation)(nil)).
			Where("event_id = ?", id).
			Exec(ctx)
		return err
	})
	return deleted, err
}

// ---------------- DASHBOARD ----------------

// ListEventsByOrganizer → every event the user organizes, upcoming first
func (d *DB) ListEventsByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("?TableAlias.organizer_id = ?", organizerID).
		OrderExpr("?TableAlias.event_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListRegisteredEvents → events the user currently holds a registration for
func (d *DB) ListRegisteredEvents(ctx context.Context, userID string) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Relation("Organizer").
		Join("JOIN event_participants AS ep ON ep.event_id = ?TableAlias.id").
		Where("ep.user_id = ?", userID).
		Where("ep.status = ?", models.ParticipationRegistered).
		OrderExpr("?TableAlias.event_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := d.Bun.NewSelect().
		Model(&profile).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
