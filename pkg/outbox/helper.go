package outbox

import (
	"context"
	"encoding/json"
	"fmt"
)

// InsertEventInTx marshals payload and stores it as a pending event using tx.
func InsertEventInTx(
	ctx context.Context,
	tx Querier,
	repo *Repository,
	aggregateType string,
	aggregateID *int64,
	routingKey string,
	payload any,
) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}
	return repo.InsertEvent(ctx, tx, event)
}
