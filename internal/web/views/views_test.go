package views

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-events/internal/i18n"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/participation"
)

var now = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func pageContext(principal *models.Principal) PageContext {
	tr := i18n.NewTranslator("pt-BR", logger.NewDiscardLogger())
	return PageContext{
		L:         tr.For("pt-BR", time.UTC),
		Principal: principal,
		AppName:   "EventHub",
		CSRFToken: "token-123",
		Path:      "/events/evt-1",
		LoginURL:  "/auth/login",
		Now:       now,
	}
}

func render(t *testing.T, pc PageContext, d DetailData) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, EventDetail(pc, d).Render(context.Background(), &buf))
	return buf.String()
}

func TestParticipationControl(t *testing.T) {
	organizer := &models.Principal{UserID: "organizer-1"}
	viewer := &models.Principal{UserID: "user-1"}
	upcoming := models.Event{OrganizerID: "organizer-1", Status: models.EventStatusActive, EventDate: now.Add(24 * time.Hour)}

	past := upcoming
	past.EventDate = now.Add(-time.Hour)
	cancelled := upcoming
	cancelled.Status = models.EventStatusCancelled
	full := upcoming
	full.MaxParticipants = intPtr(2)
	full.CurrentParticipants = 2

	tests := []struct {
		name   string
		event  models.Event
		viewer *models.Principal
		state  participation.State
		want   Control
	}{
		{"organizer", upcoming, organizer, participation.NotRegistered, ControlOrganizer},
		{"anonymous", upcoming, nil, participation.NotRegistered, ControlLogin},
		{"can register", upcoming, viewer, participation.NotRegistered, ControlRegister},
		{"registered", upcoming, viewer, participation.Registered, ControlCancel},
		{"registered keeps cancel after start", past, viewer, participation.Registered, ControlCancel},
		{"past", past, viewer, participation.NotRegistered, ControlFinished},
		{"cancelled", cancelled, viewer, participation.NotRegistered, ControlFinished},
		{"sold out", full, viewer, participation.NotRegistered, ControlSoldOut},
		{"sold out before login", full, nil, participation.NotRegistered, ControlSoldOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.event
			assert.Equal(t, tt.want, ParticipationControl(&e, tt.viewer, tt.state, now))
		})
	}
}

func TestEventDetailEscapesUserContent(t *testing.T) {
	e := &models.Event{
		ID:          "evt-1",
		Title:       `<script>alert("x")</script>`,
		Description: "Show com **banda** <b>ao vivo</b>",
		OrganizerID: "organizer-1",
		Status:      models.EventStatusActive,
		EventDate:   now.Add(24 * time.Hour),
	}

	body := render(t, pageContext(nil), DetailData{Event: e})

	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "<strong>banda</strong>")
	assert.NotContains(t, body, "<b>ao vivo</b>")
	assert.Contains(t, body, "/auth/login?next=")
}

func TestEventDetailParticipantListForOrganizer(t *testing.T) {
	e := &models.Event{
		ID:                  "evt-1",
		Title:               "Meetup",
		OrganizerID:         "organizer-1",
		Status:              models.EventStatusActive,
		EventDate:           now.Add(24 * time.Hour),
		CurrentParticipants: 1,
	}
	participants := []models.Participation{
		{UserID: "user-1", Profile: &models.Profile{FullName: "Ana Souza"}},
	}

	body := render(t, pageContext(&models.Principal{UserID: "organizer-1"}), DetailData{
		Event:            e,
		Participants:     participants,
		ShowParticipants: true,
	})

	assert.Contains(t, body, "Lista de participantes (1)")
	assert.Contains(t, body, "Ana Souza")
	assert.Contains(t, body, `value="token-123"`)
}

func TestFieldAttrsMarksInvalidInput(t *testing.T) {
	d := FormData{ErrorField: "required"}

	attrs := d.fieldAttrs("title", "", true)
	assert.Equal(t, "invalid", attrs["class"])
	assert.Equal(t, true, attrs["required"])

	attrs = d.fieldAttrs("title", "Meetup", true)
	assert.NotContains(t, attrs, "class")

	attrs = FormData{ErrorField: "max_participants"}.fieldAttrs("max_participants", "0", false)
	assert.Equal(t, "invalid", attrs["class"])
	assert.Equal(t, "1", attrs["min"])
}
