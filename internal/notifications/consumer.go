package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox/idempotency"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox/payloads"
)

const settlementNotificationConsumer = "settlement-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches settlement events and writes store dashboard notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a settlement notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("settlement subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !c.handles(eventType) {
		c.logg.Info(logCtx, "skipping event with no notification")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, settlementNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notifications, err := c.build(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, settlementNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	for _, notification := range notifications {
		if err := c.repo.Create(ctx, notification); err != nil {
			c.logg.Error(logCtx, "notification write failed", err)
			_ = c.idempotency.Delete(ctx, settlementNotificationConsumer, eventID)
			return processResult{nack: true}
		}
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"notifications": len(notifications),
	}), "settlement event handled")
	return processResult{ack: true}
}

func (c *Consumer) handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderCreated,
		enums.EventFundsReleased,
		enums.EventFundsReversed,
		enums.EventReturnRequested,
		enums.EventRefundProcessed:
		return true
	}
	return false
}

// build maps one settlement event to the notification rows it produces. An
// order spanning several stores notifies each of them.
func (c *Consumer) build(eventType enums.OutboxEventType, data json.RawMessage) ([]*models.Notification, error) {
	switch eventType {
	case enums.EventOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		notifications := make([]*models.Notification, 0, len(payload.StoreIDs))
		for _, storeID := range payload.StoreIDs {
			if storeID == uuid.Nil {
				continue
			}
			notifications = append(notifications, &models.Notification{
				StoreID: storeID,
				Type:    enums.NotificationTypeOrder,
				Title:   "New order received",
				Message: fmt.Sprintf("You have a new order %s awaiting processing.", shortID(payload.OrderID)),
				Link:    stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
			})
		}
		return notifications, nil
	case enums.EventFundsReleased:
		var payload payloads.FundsReleasedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.StoreID == uuid.Nil {
			return nil, fmt.Errorf("store id missing")
		}
		return []*models.Notification{{
			StoreID: payload.StoreID,
			Type:    enums.NotificationTypePayout,
			Title:   "Funds released",
			Message: fmt.Sprintf("%s has been credited to your wallet for order %s.", naira(payload.AmountKobo), shortID(payload.OrderID)),
			Link:    stringPtr("/wallet"),
		}}, nil
	case enums.EventFundsReversed:
		var payload payloads.FundsReversedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.StoreID == uuid.Nil {
			return nil, fmt.Errorf("store id missing")
		}
		return []*models.Notification{{
			StoreID: payload.StoreID,
			Type:    enums.NotificationTypePayout,
			Title:   "Payout reversed",
			Message: fmt.Sprintf("%s was debited from your wallet for order %s. Reason: %s", naira(payload.AmountKobo), shortID(payload.OrderID), payload.Reason),
			Link:    stringPtr("/wallet"),
		}}, nil
	case enums.EventReturnRequested:
		var payload payloads.ReturnRequestedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.StoreID == uuid.Nil {
			return nil, fmt.Errorf("store id missing")
		}
		return []*models.Notification{{
			StoreID: payload.StoreID,
			Type:    enums.NotificationTypeReturn,
			Title:   "Return requested",
			Message: fmt.Sprintf("A buyer opened a return on order %s. Reason: %s", shortID(payload.OrderID), payload.Reason),
			Link:    stringPtr(fmt.Sprintf("/orders/%s/returns/%s", payload.OrderID, payload.ReturnID)),
		}}, nil
	case enums.EventRefundProcessed:
		var payload payloads.RefundProcessedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.StoreID == uuid.Nil {
			return nil, fmt.Errorf("store id missing")
		}
		return []*models.Notification{{
			StoreID: payload.StoreID,
			Type:    enums.NotificationTypeReturn,
			Title:   "Refund processed",
			Message: fmt.Sprintf("%s was refunded to the buyer on order %s.", naira(payload.AmountKobo), shortID(payload.OrderID)),
			Link:    stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
		}}, nil
	default:
		return nil, fmt.Errorf("unhandled event type %s", eventType)
	}
}

func naira(amountKobo int64) string {
	return "₦" + decimal.NewFromInt(amountKobo).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func stringPtr(value string) *string {
	return &value
}
