package services

import (
	"context"

	"github.com/Dosada05/tournament-divisions/storage"
	"github.com/google/uuid"
)

// EventPublisher delivers realtime messages to subscribers of a room.
type EventPublisher interface {
	BroadcastToRoom(roomID string, message interface{})
}

// SnapshotStore archives audit records of generation runs.
type SnapshotStore interface {
	SaveDivisions(ctx context.Context, tournamentID int, snapshot interface{}) (*storage.UploadResult, error)
	SaveBracket(ctx context.Context, divisionID int, token uuid.UUID, snapshot interface{}) (*storage.UploadResult, error)
}

type noopPublisher struct{}

func (noopPublisher) BroadcastToRoom(string, interface{}) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
