package sse

import (
	"context"
	"sync"

	"ms-events/internal/models"
)

// ParticipantEventEmitter fans participant count updates out to the SSE
// clients watching an event page.
type ParticipantEventEmitter struct {
	// key: eventID, value: client channels
	eventClients     map[string][]chan models.ParticipantCountUpdate
	eventClientMutex sync.RWMutex
}

func NewParticipantEventEmitter() *ParticipantEventEmitter {
	return &ParticipantEventEmitter{
		eventClients: make(map[string][]chan models.ParticipantCountUpdate),
	}
}

// SubscribeToEvent registers a client until ctx is done. The returned channel
// is closed on removal.
func (e *ParticipantEventEmitter) SubscribeToEvent(ctx context.Context, eventID string) <-chan models.ParticipantCountUpdate {
	clientChan := make(chan models.ParticipantCountUpdate, 10)

	e.eventClientMutex.Lock()
	e.eventClients[eventID] = append(e.eventClients[eventID], clientChan)
	e.eventClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeEventClient(eventID, clientChan)
	}()

	return clientChan
}

// Broadcast sends the update to every subscriber of its event. Slow clients
// with a full buffer miss the update.
func (e *ParticipantEventEmitter) Broadcast(update models.ParticipantCountUpdate) {
	// hold the read lock while sending so a channel cannot be closed mid-send
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()

	for _, clientChan := range e.eventClients[update.EventID] {
		select {
		case clientChan <- update:
		default:
		}
	}
}

func (e *ParticipantEventEmitter) removeEventClient(eventID string, clientChan chan models.ParticipantCountUpdate) {
	e.eventClientMutex.Lock()
	defer e.eventClientMutex.Unlock()

	clients := e.eventClients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.eventClients[eventID] = append(clients[:i:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.eventClients[eventID]) == 0 {
		delete(e.eventClients, eventID)
	}
}

// GetEventClientCount returns the number of clients currently subscribed to an event
func (e *ParticipantEventEmitter) GetEventClientCount(eventID string) int {
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()
	return len(e.eventClients[eventID])
}
