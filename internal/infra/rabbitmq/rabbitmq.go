package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	defaultConnectAttempts = 5
	defaultConnectDelay    = 5 * time.Second
)

// FailurePolicy decides the fate of a delivery whose handler returned an
// error. Drop acknowledges the message anyway, DeadLetter rejects it without
// requeue so the broker can route it to a DLX if one is configured.
type FailurePolicy string

const (
	FailurePolicyDrop       FailurePolicy = "drop"
	FailurePolicyDeadLetter FailurePolicy = "dead_letter"
)

func ParseFailurePolicy(raw string) (FailurePolicy, error) {
	switch FailurePolicy(raw) {
	case FailurePolicyDrop, FailurePolicyDeadLetter:
		return FailurePolicy(raw), nil
	case "":
		return FailurePolicyDrop, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", raw)
	}
}

type Config struct {
	URL             string
	ConnectAttempts int
	ConnectDelay    time.Duration
}

type Client struct {
	conn *amqp.Connection
	log  *zap.Logger
}

// Dial connects to the broker, retrying a fixed number of times with a fixed
// delay. This is the only retry policy in the system.
func Dial(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}
	delay := cfg.ConnectDelay
	if delay <= 0 {
		delay = defaultConnectDelay
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			return &Client{conn: conn, log: log}, nil
		}
		if log != nil {
			log.Warn("rabbitmq connect failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Error(err),
			)
		}
		if attempt < attempts {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", attempts, err)
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

// Publish declares the durable queue and enqueues a persistent message on the
// default exchange under the queue name as routing key.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("rabbitmq connection is nil")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	defer func() {
		_ = ch.Close()
	}()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish to queue %q: %w", queue, err)
	}

	return nil
}

// Handler processes one delivery. A nil return acknowledges the message;
// a non-nil return is resolved according to the consumer's FailurePolicy.
type Handler func(ctx context.Context, body []byte) error

// Consume delivers messages from the durable queue one at a time until ctx is
// cancelled. Acknowledgement is manual and happens only after the handler
// returns.
func (c *Client) Consume(ctx context.Context, queue string, policy FailurePolicy, handler Handler) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("rabbitmq connection is nil")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	defer func() {
		_ = ch.Close()
	}()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set channel qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for queue %q closed", queue)
			}
			c.resolve(delivery, policy, handler(ctx, delivery.Body))
		}
	}
}

func (c *Client) resolve(delivery amqp.Delivery, policy FailurePolicy, handlerErr error) {
	if handlerErr == nil {
		if err := delivery.Ack(false); err != nil && c.log != nil {
			c.log.Error("ack delivery", zap.Error(err))
		}
		return
	}

	if c.log != nil {
		c.log.Error("message handler failed",
			zap.String("policy", string(policy)),
			zap.Error(handlerErr),
		)
	}

	switch policy {
	case FailurePolicyDeadLetter:
		if err := delivery.Nack(false, false); err != nil && c.log != nil {
			c.log.Error("nack delivery", zap.Error(err))
		}
	default:
		if err := delivery.Ack(false); err != nil && c.log != nil {
			c.log.Error("ack failed delivery", zap.Error(err))
		}
	}
}
