package messaging

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/pkg/logger"
)

// Disposition is what a handler wants done with a delivery.
type Disposition int

const (
	Ack Disposition = iota
	// Reject drops the message without requeueing it.
	Reject
)

// Handler processes one delivery body.
type Handler func(ctx context.Context, routingKey string, body []byte) Disposition

// Consumer reads one durable queue bound to a topic exchange.
type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewConsumer dials url, declares the exchange and queue, and binds every key.
// Prefetch is one so each message is handled to completion before the next.
func NewConsumer(url, exchange, queue string, keys []string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	fail := func(err error) (*Consumer, error) {
		_ = conn.Close()
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fail(fmt.Errorf("open channel: %w", err))
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("declare exchange %s: %w", exchange, err))
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("declare queue %s: %w", queue, err))
	}
	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return fail(fmt.Errorf("bind %s: %w", key, err))
		}
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fail(fmt.Errorf("set qos: %w", err))
	}
	return &Consumer{conn: conn, ch: ch, queue: q.Name}, nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed")
			}
			Settle(ctx, d.Acknowledger, d.DeliveryTag, d.RoutingKey, d.Body, handle)
		}
	}
}

// Settle runs handle on one message and acks or nacks it. A panicking
// handler is treated as Reject.
func Settle(ctx context.Context, ack amqp.Acknowledger, tag uint64, routingKey string, body []byte, handle Handler) {
	disposition := Reject
	func() {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Inbound handler panic", zap.Any("panic", p), zap.String("routing_key", routingKey))
			}
		}()
		disposition = handle(ctx, routingKey, body)
	}()

	var err error
	if disposition == Ack {
		err = ack.Ack(tag, false)
	} else {
		err = ack.Nack(tag, false, false)
	}
	if err != nil {
		logger.Warn("Settle delivery failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

// Close closes the channel then the connection.
func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
