package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jvaguiar05/smart-park-system/pkg/models"
)

// StatusNotification is published after a status write commits.
type StatusNotification struct {
	ClientID        int64                   `json:"client_id"`
	EstablishmentID int64                   `json:"establishment_id"`
	LotID           int64                   `json:"lot_id"`
	SlotID          int64                   `json:"slot_id"`
	Status          models.SlotStatusValue  `json:"status"`
	PrevStatus      *models.SlotStatusValue `json:"prev_status"`
	VehicleTypeID   *int64                  `json:"vehicle_type_id"`
	Source          string                  `json:"source"`
	EventID         *uuid.UUID              `json:"event_id,omitempty"`
	ChangedAt       time.Time               `json:"changed_at"`
}

// StatusPublisher fans committed status changes out to subscribers.
// Delivery is best effort; a failed publish never undoes a write.
type StatusPublisher interface {
	Publish(ctx context.Context, n StatusNotification) error
}

type redisStatusPublisher struct {
	client  *redis.Client
	channel string
}

// NewStatusPublisher publishes on a Redis channel. A nil client disables publishing.
func NewStatusPublisher(client *redis.Client, channel string) StatusPublisher {
	if client == nil {
		return noopStatusPublisher{}
	}
	return &redisStatusPublisher{client: client, channel: channel}
}

func (p *redisStatusPublisher) Publish(ctx context.Context, n StatusNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode status notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish status notification: %w", err)
	}
	return nil
}

type noopStatusPublisher struct{}

func (noopStatusPublisher) Publish(context.Context, StatusNotification) error { return nil }
