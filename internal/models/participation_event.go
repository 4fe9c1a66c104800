package models

import "time"

// ParticipationChangedEvent is published to Kafka after a committed transition.
type ParticipationChangedEvent struct {
	EventID             string    `json:"event_id"`
	UserID              string    `json:"user_id"`
	Status              string    `json:"status"`
	CurrentParticipants int       `json:"current_participants"`
	OccurredAt          time.Time `json:"occurred_at"`
}

// EventLifecycleEvent is published when an organizer creates, updates or deletes an event.
type EventLifecycleEvent struct {
	Action      string    `json:"action"`
	EventID     string    `json:"event_id"`
	OrganizerID string    `json:"organizer_id"`
	Title       string    `json:"title,omitempty"`
	EventDate   time.Time `json:"event_date,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ParticipantCountUpdate is pushed to SSE subscribers of an event.
type ParticipantCountUpdate struct {
	EventID             string `json:"event_id"`
	CurrentParticipants int    `json:"current_participants"`
	MaxParticipants     *int   `json:"max_participants,omitempty"`
}
