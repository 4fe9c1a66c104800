package participation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-events/internal/config"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/participation"
)

// DBLayer is implemented by participation/db.DB.
type DBLayer interface {
	Register(ctx context.Context, eventID, userID string, now time.Time) (*participation.Outcome, error)
	Cancel(ctx context.Context, eventID, userID string) (*participation.Outcome, error)
	GetStatus(ctx context.Context, eventID, userID string) (string, error)
	ListParticipants(ctx context.Context, eventID string) ([]models.Participation, error)
}

// Locker is implemented by participation/redis.ToggleLock.
type Locker interface {
	Acquire(ctx context.Context, eventID, userID, token string) (bool, error)
	Release(ctx context.Context, eventID, userID, token string) error
}

// Broadcaster is implemented by sse.ParticipantEventEmitter.
type Broadcaster interface {
	Broadcast(update models.ParticipantCountUpdate)
}

// Result is the participation state after a call, with the event's counter.
type Result struct {
	State               participation.State `json:"state"`
	Changed             bool                `json:"changed"`
	CurrentParticipants int                 `json:"current_participants"`
	MaxParticipants     *int                `json:"max_participants,omitempty"`
}

type Manager struct {
	DB        DBLayer
	Locker    Locker
	Publisher kafka.Publisher
	Topics    config.TopicConfig
	Events    Broadcaster
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewManager(db DBLayer, publisher kafka.Publisher, topics config.TopicConfig, log *logger.Logger) *Manager {
	return &Manager{
		DB:        db,
		Publisher: publisher,
		Topics:    topics,
		Logger:    log,
		Now:       time.Now,
	}
}

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func authenticated(p *models.Principal) bool {
	return p != nil && p.UserID != ""
}

// Register moves the principal to Registered. Registering twice is a no-op.
func (m *Manager) Register(ctx context.Context, principal *models.Principal, eventID string) (*Result, error) {
	if !authenticated(principal) {
		return nil, participation.ErrAuthenticationRequired
	}

	out, err := m.DB.Register(ctx, eventID, principal.UserID, m.now())
	if err != nil {
		return nil, m.classify("REGISTER", eventID, principal.UserID, err)
	}

	result := &Result{
		State:               participation.Registered,
		Changed:             out.Changed,
		CurrentParticipants: out.CurrentParticipants,
		MaxParticipants:     out.MaxParticipants,
	}
	if out.Changed {
		m.Logger.LogParticipation("REGISTER", eventID, principal.UserID, fmt.Sprintf("now %d participants", out.CurrentParticipants))
		m.afterCommit(ctx, m.Topics.ParticipationRegistered, models.ParticipationRegistered, eventID, principal.UserID, result)
	}
	return result, nil
}

// Cancel moves the principal to NotRegistered. Cancelling without a
// registration is a no-op; the event date does not matter.
func (m *Manager) Cancel(ctx context.Context, principal *models.Principal, eventID string) (*Result, error) {
	if !authenticated(principal) {
		return nil, participation.ErrAuthenticationRequired
	}

	out, err := m.DB.Cancel(ctx, eventID, principal.UserID)
	if err != nil {
		return nil, m.classify("CANCEL", eventID, principal.UserID, err)
	}

	result := &Result{
		State:               participation.NotRegistered,
		Changed:             out.Changed,
		CurrentParticipants: out.CurrentParticipants,
		MaxParticipants:     out.MaxParticipants,
	}
	if out.Changed {
		m.Logger.LogParticipation("CANCEL", eventID, principal.UserID, fmt.Sprintf("now %d participants", out.CurrentParticipants))
		m.afterCommit(ctx, m.Topics.ParticipationCancelled, models.ParticipationCancelled, eventID, principal.UserID, result)
	}
	return result, nil
}

// Status returns NotRegistered for anonymous callers.
func (m *Manager) Status(ctx context.Context, principal *models.Principal, eventID string) (participation.State, error) {
	if !authenticated(principal) {
		return participation.NotRegistered, nil
	}
	status, err := m.DB.GetStatus(ctx, eventID, principal.UserID)
	if err != nil {
		return participation.NotRegistered, m.classify("STATUS", eventID, principal.UserID, err)
	}
	return participation.StateFromStatus(status), nil
}

// Toggle applies the transition opposite to the stored state.
func (m *Manager) Toggle(ctx context.Context, principal *models.Principal, eventID string) (*Result, error) {
	if !authenticated(principal) {
		return nil, participation.ErrAuthenticationRequired
	}

	if m.Locker != nil {
		token := uuid.New().String()
		ok, err := m.Locker.Acquire(ctx, eventID, principal.UserID, token)
		switch {
		case err != nil:
			// the transaction still guarantees correctness without the lock
			m.Logger.Warn("PARTICIPATION", "Toggle lock unavailable: "+err.Error())
		case !ok:
			return nil, participation.ErrToggleInProgress
		default:
			defer func() {
				if err := m.Locker.Release(context.WithoutCancel(ctx), eventID, principal.UserID, token); err != nil {
					m.Logger.Warn("PARTICIPATION", "Failed to release toggle lock: "+err.Error())
				}
			}()
		}
	}

	current, err := m.Status(ctx, principal, eventID)
	if err != nil {
		return nil, err
	}
	if current == participation.Registered {
		return m.Cancel(ctx, principal, eventID)
	}
	return m.Register(ctx, principal, eventID)
}

// Participants lists registered users. Only the organizer may see them.
func (m *Manager) Participants(ctx context.Context, principal *models.Principal, event *models.Event) ([]models.Participation, error) {
	if !authenticated(principal) {
		return nil, participation.ErrAuthenticationRequired
	}
	if !event.IsOrganizedBy(principal.UserID) {
		return nil, participation.ErrNotOrganizer
	}
	rows, err := m.DB.ListParticipants(ctx, event.ID)
	if err != nil {
		return nil, m.classify("LIST", event.ID, principal.UserID, err)
	}
	return rows, nil
}

// classify keeps rule violations as they are and turns everything else into
// ErrOperationFailed.
func (m *Manager) classify(action, eventID, userID string, err error) error {
	if participation.IsDomainError(err) {
		return err
	}
	m.Logger.Error("PARTICIPATION", fmt.Sprintf("[%s] event=%s user=%s - %v", action, eventID, userID, err))
	return fmt.Errorf("%w: %v", participation.ErrOperationFailed, err)
}

// afterCommit publishes the change and pushes the new count to live viewers.
// Failures here never undo or fail the committed transition.
func (m *Manager) afterCommit(ctx context.Context, topic, status, eventID, userID string, result *Result) {
	if m.Events != nil {
		m.Events.Broadcast(models.ParticipantCountUpdate{
			EventID:             eventID,
			CurrentParticipants: result.CurrentParticipants,
			MaxParticipants:     result.MaxParticipants,
		})
	}

	if m.Publisher == nil || topic == "" {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	event := models.ParticipationChangedEvent{
		EventID:             eventID,
		UserID:              userID,
		Status:              status,
		CurrentParticipants: result.CurrentParticipants,
		OccurredAt:          m.now().UTC(),
	}
	if err := m.Publisher.Publish(pubCtx, topic, eventID, event); err != nil && !errors.Is(err, context.Canceled) {
		m.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for event %s: %v", topic, eventID, err))
	}
}
