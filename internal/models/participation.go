package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ParticipationRegistered = "registered"
	ParticipationCancelled  = "cancelled"
)

type Participation struct {
	bun.BaseModel `bun:"table:event_participants,alias:participation"`

	ID           string    `bun:"id,pk" json:"id"`
	EventID      string    `bun:"event_id,notnull,unique:event_user" json:"event_id"`
	UserID       string    `bun:"user_id,notnull,unique:event_user" json:"user_id"`
	Status       string    `bun:"status,notnull" json:"status"`
	RegisteredAt time.Time `bun:"registered_at,notnull,default:current_timestamp" json:"registered_at"`

	Event   *Event   `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
	Profile *Profile `bun:"rel:belongs-to,join:user_id=id" json:"profile,omitempty"`
}
