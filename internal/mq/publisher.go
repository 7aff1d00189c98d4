package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	ierr "github.com/septivank/meter-reading-service/internal/errors"
	"go.uber.org/zap"
)

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	conn       *Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(conn *Connection, exchange, routingKey string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:       conn,
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

// Batch sources.
const (
	SourceAPI    = "api"
	SourceUpload = "upload"
	SourceQueue  = "queue"
	SourceSeed   = "seed"
)

// BatchProcessedEvent is published after a batch has been reconciled
type BatchProcessedEvent struct {
	UploadID    string             `json:"upload_id,omitempty"`
	RecordType  string             `json:"record_type"`
	Source      string             `json:"source"`
	Accepted    int                `json:"accepted"`
	Rejected    int                `json:"rejected"`
	Errors      []ierr.RecordError `json:"errors,omitempty"`
	ProcessedAt time.Time          `json:"processed_at"`
}

// PublishBatchProcessed publishes a batch result event
func (p *Publisher) PublishBatchProcessed(ctx context.Context, event BatchProcessedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := fmt.Sprintf("%s.%s", p.routingKey, event.RecordType)
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.UploadID,
			Timestamp:    event.ProcessedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published batch processed event",
		zap.String("routing_key", routingKey),
		zap.String("upload_id", event.UploadID),
		zap.Int("accepted", event.Accepted),
		zap.Int("rejected", event.Rejected),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

// NoopPublisher drops events. It stands in when RabbitMQ is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishBatchProcessed(ctx context.Context, event BatchProcessedEvent) error {
	return nil
}
