package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"cogi/internal/logger"
)

// QueueMailer publishes messages to a durable RabbitMQ queue. A separate
// worker (cmd/mailer) consumes the queue and performs delivery.
type QueueMailer struct {
	url   string
	queue string
}

// NewQueueMailer creates a QueueMailer.
func NewQueueMailer(url, queue string) *QueueMailer {
	return &QueueMailer{url: url, queue: queue}
}

// Send implements Mailer. Messages are marked persistent.
func (q *QueueMailer) Send(ctx context.Context, msg Message) error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareQueue(ch, q.queue); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail message: %w", err)
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		q.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare %s: %w", name, err)
	}
	return nil
}

// Consumer drains the mail queue into a delivering Mailer.
type Consumer struct {
	url      string
	queue    string
	delivery Mailer
}

// NewConsumer creates a Consumer that hands each queued message to delivery.
func NewConsumer(url, queue string, delivery Mailer) *Consumer {
	return &Consumer{url: url, queue: queue, delivery: delivery}
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff
// when the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	log := logger.Named("mailer")
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warnw("failed to dial broker", "error", err, "retry_in", backoff)
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Warnw("consume loop ended, reconnecting", "error", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		logger.Named("mailer").Warnw("set QoS failed", "error", err)
	}
	if err := declareQueue(ch, c.queue); err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	log := logger.Named("mailer")

	if err := c.Deliver(ctx, d.Body); err != nil {
		log.Errorw("mail delivery failed", "error", err)
		_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
		return
	}
	_ = d.Ack(false)
}

// Deliver decodes one queued message body and sends it.
func (c *Consumer) Deliver(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode mail message: %w", err)
	}
	return c.delivery.Send(ctx, msg)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
