package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReplayStore is the subset of Repository replay needs.
type ReplayStore interface {
	Store
	GetEventByID(ctx context.Context, eventID int64) (*Event, error)
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
}

// ReplayService republishes events on operator request.
type ReplayService struct {
	store      ReplayStore
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
}

func NewReplayService(store ReplayStore, publisher Publisher, logger *zap.Logger) *ReplayService {
	return &ReplayService{store: store, publisher: publisher, logger: logger, maxRetries: 5}
}

// ReplayEvent publishes a single event immediately regardless of its status.
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	event, err := s.store.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}

	if err := publishEvent(ctx, s.publisher, event); err != nil {
		if markErr := s.store.MarkAsFailed(ctx, eventID, s.maxRetries); markErr != nil {
			return fmt.Errorf("failed to publish and mark as failed: %w (mark error: %v)", err, markErr)
		}
		return err
	}

	if err := s.store.MarkAsSent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to mark as sent: %w", err)
	}
	return nil
}

// ReplayFailedEvents republishes up to limit failed events and returns how many succeeded.
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.store.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	successCount := 0
	for _, event := range events {
		if err := s.ReplayEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Replay failed", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		successCount++
	}
	return successCount, nil
}
