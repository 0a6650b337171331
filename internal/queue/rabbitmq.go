package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wardrobehq/wardrobe/internal/config"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

const queueName = "item_ingestion_queue"

// attemptHeader carries the 1-based delivery attempt across republishes.
const attemptHeader = "x-attempt"

// RabbitQueue implements Queue over a durable RabbitMQ queue with
// persistent messages and manual acknowledgement. Bounded redelivery is
// implemented by republishing with an incremented attempt header; a
// message past the attempt limit is dropped.
type RabbitQueue struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	maxAttempts int
	prefetch    int
}

// NewRabbitQueue connects to RabbitMQ and declares the ingestion queue.
func NewRabbitQueue(cfg config.QueueConfig) (*RabbitQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	return &RabbitQueue{
		conn:        conn,
		channel:     ch,
		maxAttempts: cfg.MaxAttempts,
		prefetch:    cfg.Prefetch,
	}, nil
}

func (q *RabbitQueue) Publish(ctx context.Context, msg models.WorkMessage) error {
	return q.publish(ctx, msg, 1)
}

func (q *RabbitQueue) publish(ctx context.Context, msg models.WorkMessage, attempt int) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal work message: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Headers:      amqp.Table{attemptHeader: int32(attempt)},
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish work message: %w", err)
	}
	return nil
}

func (q *RabbitQueue) Consume(ctx context.Context, handler Handler) error {
	if err := q.channel.Qos(q.prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	deliveries, err := q.channel.Consume(
		queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			q.dispatch(ctx, d, handler)
		}
	}
}

func (q *RabbitQueue) dispatch(ctx context.Context, d amqp.Delivery, handler Handler) {
	var msg models.WorkMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		slog.Error("dropping malformed work message", "error", err)
		_ = d.Ack(false)
		return
	}

	attempt := deliveryAttempt(d)
	disposition := handler(ctx, msg, attempt)

	switch disposition {
	case Retry:
		if attempt >= q.maxAttempts {
			slog.Warn("work message exhausted retries, dropping",
				"item_id", msg.ItemID, "attempts", attempt)
			_ = d.Ack(false)
			return
		}
		if err := q.publish(ctx, msg, attempt+1); err != nil {
			slog.Error("requeue failed, releasing for broker redelivery",
				"item_id", msg.ItemID, "error", err)
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	default:
		_ = d.Ack(false)
	}
}

func deliveryAttempt(d amqp.Delivery) int {
	if v, ok := d.Headers[attemptHeader]; ok {
		switch n := v.(type) {
		case int32:
			return int(n)
		case int64:
			return int(n)
		}
	}
	return 1
}

func (q *RabbitQueue) Close() error {
	if q.channel != nil {
		if err := q.channel.Close(); err != nil {
			slog.Error("close channel", "error", err)
		}
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

var _ Queue = (*RabbitQueue)(nil)
