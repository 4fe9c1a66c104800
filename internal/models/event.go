package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	EventStatusActive    = "active"
	EventStatusCancelled = "cancelled"
)

type Event struct {
	bun.BaseModel `bun:"table:events,alias:event"`

	ID                  string     `bun:"id,pk" json:"id"`
	Title               string     `bun:"title,notnull" json:"title"`
	Description         string     `bun:"description,nullzero" json:"description,omitempty"`
	EventDate           time.Time  `bun:"event_date,notnull" json:"event_date"`
	EndDate             *time.Time `bun:"end_date" json:"end_date,omitempty"`
	Location            string     `bun:"location,nullzero" json:"location,omitempty"`
	Address             string     `bun:"address,nullzero" json:"address,omitempty"`
	MaxParticipants     *int       `bun:"max_participants" json:"max_participants,omitempty"`
	CurrentParticipants int        `bun:"current_participants,notnull,default:0" json:"current_participants"`
	Price               float64    `bun:"price,notnull,default:0" json:"price"`
	Category            string     `bun:"category,nullzero" json:"category,omitempty"`
	ImageURL            string     `bun:"image_url,nullzero" json:"image_url,omitempty"`
	OrganizerID         string     `bun:"organizer_id,notnull" json:"organizer_id"`
	Status              string     `bun:"status,notnull,default:'active'" json:"status"`
	CreatedAt           time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt           time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Organizer *Profile `bun:"rel:belongs-to,join:organizer_id=id" json:"organizer,omitempty"`
}

// IsFree reports whether the event has no entrance fee.
func (e *Event) IsFree() bool {
	return e.Price <= 0
}

// IsPast reports whether the event already started at the given instant.
func (e *Event) IsPast(now time.Time) bool {
	return !e.EventDate.After(now)
}

// IsFullyBooked is true when a capacity is set and has been reached.
func (e *Event) IsFullyBooked() bool {
	return e.MaxParticipants != nil && e.CurrentParticipants >= *e.MaxParticipants
}

// SpotsLeft returns -1 for events without a capacity.
func (e *Event) SpotsLeft() int {
	if e.MaxParticipants == nil {
		return -1
	}
	left := *e.MaxParticipants - e.CurrentParticipants
	if left < 0 {
		return 0
	}
	return left
}

func (e *Event) IsOrganizedBy(userID string) bool {
	return userID != "" && e.OrganizerID == userID
}
