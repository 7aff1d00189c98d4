package mq

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	ierr "github.com/septivank/meter-reading-service/internal/errors"
	"go.uber.org/zap"
)

// MessageHandler processes one message body
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer feeds upload messages from a queue to a handler. A message is
// acked once the handler succeeds; failures are dead-lettered, except a
// transient storage failure which is requeued once.
type Consumer struct {
	conn          *Connection
	channel       *amqp.Channel
	queue         string
	prefetchCount int
	logger        *zap.Logger
	handle        MessageHandler
	tag           string

	// done is closed when the delivery loop exits
	done chan struct{}
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Connection       *Connection
	Queue            string
	DLQQueue         string
	Exchange         string
	RoutingKey       string
	PrefetchCount    int
	Logger           *zap.Logger
	MessageProcessor MessageHandler
}

// NewConsumer declares the exchange, the queue with its dead-letter queue,
// and the binding between them.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	ch, err := declareTopology(cfg)
	if err != nil {
		return nil, err
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Consumer{
		conn:          cfg.Connection,
		channel:       ch,
		queue:         cfg.Queue,
		prefetchCount: cfg.PrefetchCount,
		logger:        cfg.Logger,
		handle:        cfg.MessageProcessor,
		tag:           fmt.Sprintf("%s-%s", cfg.Queue, uuid.NewString()),
	}, nil
}

func declareTopology(cfg ConsumerConfig) (*amqp.Channel, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.DLQQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DLQQueue,
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args); err != nil {
		// The broker closes the channel on a failed declare, so the queue
		// is redeclared as it already exists on a fresh channel.
		cfg.Logger.Warn("failed to declare queue with DLX, using existing queue arguments",
			zap.String("queue", cfg.Queue),
			zap.Error(err))

		ch, err = cfg.Connection.Channel()
		if err != nil {
			return nil, fmt.Errorf("failed to create channel: %w", err)
		}
		if _, err := ch.QueueDeclarePassive(cfg.Queue, true, false, false, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to declare queue: %w", err)
		}
	}

	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}
	return ch, nil
}

// Start starts consuming messages until ctx is cancelled or the channel closes
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		c.tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started",
		zap.String("queue", c.queue),
		zap.String("consumer_tag", c.tag),
		zap.Int("prefetch", c.prefetchCount),
	)

	c.consume(ctx, msgs)
	return nil
}

// consume handles deliveries one at a time on its own goroutine.
func (c *Consumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("consumer context cancelled, stopping")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Info("message channel closed")
					return
				}
				c.processMessage(ctx, msg)
			}
		}
	}()
}

// wait blocks until the delivery loop has exited
func (c *Consumer) wait() {
	if c.done != nil {
		<-c.done
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	logger := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("message_id", msg.MessageId),
	)
	logger.Info("received message from queue", zap.Int("body_size", len(msg.Body)))

	err := c.safeHandle(ctx, msg.Body)
	if err != nil {
		// Transient storage failures go back on the queue once; everything
		// else, and a failed redelivery, is dead-lettered.
		requeue := ierr.IsStorageTransient(err) && !msg.Redelivered
		logger.Error("failed to process message",
			zap.Error(err),
			zap.Bool("redelivered", msg.Redelivered),
			zap.Bool("requeue", requeue),
		)

		if nackErr := msg.Nack(false, requeue); nackErr != nil {
			logger.Error("failed to NACK message", zap.Error(nackErr))
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		logger.Error("failed to ACK message", zap.Error(ackErr))
		return
	}
	logger.Info("message processed and acknowledged")
}

func (c *Consumer) safeHandle(ctx context.Context, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing message: %v", r)
		}
	}()
	return c.handle(ctx, body)
}

// Close stops deliveries, waits for the message being processed, then
// closes the channel.
func (c *Consumer) Close() error {
	if c.channel == nil {
		return nil
	}
	if c.done != nil {
		// the library closes the delivery channel once the cancel is confirmed
		if err := c.channel.Cancel(c.tag, false); err != nil {
			c.logger.Warn("failed to cancel consumer", zap.Error(err))
		}
		c.wait()
	}
	return c.channel.Close()
}
