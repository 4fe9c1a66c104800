package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-events/internal/models"
	"ms-events/internal/participation"
)

type DB struct {
	Bun *bun.DB
}

// upsertRegistration inserts a registered row, or flips a cancelled row back to
// registered. An already registered row is left untouched (0 rows affected).
const upsertRegistration = `
	INSERT INTO event_participants (id, event_id, user_id, status, registered_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (event_id, user_id) DO UPDATE
	SET status = excluded.status, registered_at = excluded.registered_at
	WHERE event_participants.status <> ?`

// Register records the user's registration and increments the event counter in
// one transaction. The counter only moves when the event is active, has not
// started, is not organized by the user and has room left; otherwise the
// transaction is rolled back and the reason is returned.
func (d *DB) Register(ctx context.Context, eventID, userID string, now time.Time) (*participation.Outcome, error) {
	var out *participation.Outcome
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// the participant row references the event, so a missing event has to
		// be reported before the insert trips the foreign key
		if _, err := loadEvent(ctx, tx, eventID, true); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, upsertRegistration,
			uuid.New().String(), eventID, userID, models.ParticipationRegistered, now,
			models.ParticipationRegistered)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// already registered
			out, err = readOutcome(ctx, tx, eventID, false)
			return err
		}

		res, err = tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("current_participants = current_participants + 1").
			Where("id = ?", eventID).
			Where("status = ?", models.EventStatusActive).
			Where("event_date > ?", now).
			Where("organizer_id <> ?", userID).
			Where("(max_participants IS NULL OR current_participants < max_participants)").
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return classifyRejection(ctx, tx, eventID, userID, now)
		}

		out, err = readOutcome(ctx, tx, eventID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel flips a registered row to cancelled and decrements the counter in one
// transaction. Without a registered row it changes nothing.
func (d *DB) Cancel(ctx context.Context, eventID, userID string) (*participation.Outcome, error) {
	var out *participation.Outcome
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Participation)(nil)).
			Set("status = ?", models.ParticipationCancelled).
			Where("event_id = ?", eventID).
			Where("user_id = ?", userID).
			Where("status = ?", models.ParticipationRegistered).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			out, err = readOutcome(ctx, tx, eventID, false)
			if errors.Is(err, participation.ErrEventNotFound) {
				out, err = &participation.Outcome{}, nil
			}
			return err
		}

		_, err = tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("current_participants = current_participants - 1").
			Where("id = ?", eventID).
			Where("current_participants > 0").
			Exec(ctx)
		if err != nil {
			return err
		}

		out, err = readOutcome(ctx, tx, eventID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetStatus returns the stored status, or "" when the user never registered.
func (d *DB) GetStatus(ctx context.Context, eventID, userID string) (string, error) {
	var status string
	err := d.Bun.NewSelect().
		Model((*models.Participation)(nil)).
		Column("status").
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return status, err
}

// ListParticipants → registered participants of an event, oldest registration first
func (d *DB) ListParticipants(ctx context.Context, eventID string) ([]models.Participation, error) {
	var rows []models.Participation
	err := d.Bun.NewSelect().
		Model(&rows).
		Relation("Profile").
		Where("?TableAlias.event_id = ?", eventID).
		Where("?TableAlias.status = ?", models.ParticipationRegistered).
		OrderExpr("?TableAlias.registered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// loadEvent reads the fields the participation rules need. With forUpdate the
// row stays locked until the transaction ends (PostgreSQL only; SQLite
// serialises writers anyway).
func loadEvent(ctx context.Context, tx bun.Tx, eventID string, forUpdate bool) (*models.Event, error) {
	var event models.Event
	q := tx.NewSelect().
		Model(&event).
		Column("id", "organizer_id", "status", "event_date", "max_participants", "current_participants").
		Where("id = ?", eventID).
		Limit(1)
	if forUpdate && tx.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, participation.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func readOutcome(ctx context.Context, tx bun.Tx, eventID string, changed bool) (*participation.Outcome, error) {
	event, err := loadEvent(ctx, tx, eventID, false)
	if err != nil {
		return nil, err
	}
	return &participation.Outcome{
		Changed:             changed,
		CurrentParticipants: event.CurrentParticipants,
		MaxParticipants:     event.MaxParticipants,
	}, nil
}

// classifyRejection explains why the conditional increment matched no row.
func classifyRejection(ctx context.Context, tx bun.Tx, eventID, userID string, now time.Time) error {
	event, err := loadEvent(ctx, tx, eventID, false)
	if err != nil {
		return err
	}
	switch {
	case event.IsOrganizedBy(userID):
		return participation.ErrOrganizerSelfRegistration
	case event.Status != models.EventStatusActive || event.IsPast(now):
		return participation.ErrRegistrationClosed
	case event.IsFullyBooked():
		return participation.ErrFullyBooked
	default:
		return participation.ErrOperationFailed
	}
}
