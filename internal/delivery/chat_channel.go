package delivery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-routine-service/internal/metrics"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
	"github.com/vhvplatform/go-routine-service/internal/shared/rabbitmq"
)

const (
	chatExchange      = "chat_gateway"
	chatRoutingPrefix = "chat.send."
)

// outboundMessage is the wire format consumed by the chat gateway
type outboundMessage struct {
	MessageRef string          `json:"message_ref"`
	UserID     string          `json:"user_id"`
	ChatID     string          `json:"chat_id"`
	Message    RenderedMessage `json:"message"`
	SentAt     time.Time       `json:"sent_at"`
}

// ChatChannel delivers rendered messages to the chat gateway over RabbitMQ
type ChatChannel struct {
	client *rabbitmq.RabbitMQClient
	log    *logger.Logger
}

// NewChatChannel creates a chat channel and declares its exchange
func NewChatChannel(client *rabbitmq.RabbitMQClient, log *logger.Logger) (*ChatChannel, error) {
	if err := client.DeclareExchange(chatExchange, "topic"); err != nil {
		return nil, err
	}
	return &ChatChannel{client: client, log: log}, nil
}

// Send publishes the message and returns its reference
func (c *ChatChannel) Send(ctx context.Context, dest Destination, msg RenderedMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewDeliveryError("send cancelled", err)
	}

	out := outboundMessage{
		MessageRef: uuid.New().String(),
		UserID:     dest.UserID,
		ChatID:     dest.ChatID,
		Message:    msg,
		SentAt:     time.Now(),
	}

	body, err := json.Marshal(out)
	if err != nil {
		return "", errors.NewDeliveryError("failed to encode message", err)
	}

	start := time.Now()
	if err := c.client.Publish(chatExchange, chatRoutingPrefix+dest.UserID, body); err != nil {
		return "", errors.NewDeliveryError("failed to publish message", err)
	}
	metrics.DeliveryDuration.WithLabelValues(string(msg.Type)).Observe(time.Since(start).Seconds())

	c.log.Debug("Published chat message", "user_id", dest.UserID, "type", msg.Type, "message_ref", out.MessageRef)
	return out.MessageRef, nil
}
