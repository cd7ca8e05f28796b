package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchangeName is the fanout exchange reconfiguration events are published to
const DefaultExchangeName = "datarest_reconfigure"

// RabbitMQBus publishes and consumes reconfiguration events over a fanout exchange.
type RabbitMQBus struct {
	conn         *amqp.Connection
	mu           sync.Mutex // guards channel; amqp channels are not safe for concurrent publishing
	channel      *amqp.Channel
	exchangeName string
}

var (
	_ EventPublisher  = (*RabbitMQBus)(nil)
	_ EventSubscriber = (*RabbitMQBus)(nil)
)

// NewRabbitMQBus connects to RabbitMQ and declares the exchange
func NewRabbitMQBus(amqpURL string) (*RabbitMQBus, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		DefaultExchangeName,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQBus{conn: conn, channel: ch, exchangeName: DefaultExchangeName}, nil
}

// Publish sends event to every subscribed server
func (b *RabbitMQBus) Publish(ctx context.Context, event *ReconfigureEvent) error {
	body, err := event.Encode()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	err = b.channel.PublishWithContext(
		ctx,
		b.exchangeName,
		"",    // routing key, ignored by fanout exchanges
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			MessageId:   event.ID.String(),
			Timestamp:   event.CreatedAt,
			Type:        string(event.Kind),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe binds a server-named exclusive queue to the exchange and consumes from it.
// The queue is deleted by the broker when the subscriber disconnects.
func (b *RabbitMQBus) Subscribe(ctx context.Context) (<-chan *ReconfigureEvent, <-chan error, error) {
	consumeCh, err := b.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	q, err := consumeCh.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := consumeCh.QueueBind(q.Name, "", b.exchangeName, false, nil); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to bind queue to exchange: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.Name,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack (false = manual ack required)
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	events := make(chan *ReconfigureEvent)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		defer func() {
			_ = consumeCh.Close()
		}()
		consume(ctx, deliveries, events, errs)
	}()

	return events, errs, nil
}

// delivery is the part of amqp.Delivery consume relies on.
type delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func consume(ctx context.Context, deliveries <-chan amqp.Delivery, events chan<- *ReconfigureEvent, errs chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				sendErr(errs, errors.New("delivery channel closed"))
				return
			}
			event, err := handleDelivery(&d, d.Body)
			if err != nil {
				sendErr(errs, err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case events <- event:
			}
		}
	}
}

// handleDelivery decodes body and acknowledges d. Undecodable events are dropped.
func handleDelivery(d delivery, body []byte) (*ReconfigureEvent, error) {
	event, err := DecodeReconfigureEvent(body)
	if err != nil {
		_ = d.Nack(false, false)
		return nil, err
	}
	_ = d.Ack(false)
	return event, nil
}

func sendErr(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}

// HealthCheck verifies the connection is open
func (b *RabbitMQBus) HealthCheck(ctx context.Context) error {
	if b.conn == nil || b.conn.IsClosed() {
		return errors.New("connection is closed")
	}
	return nil
}

// Close closes the channel and connection
func (b *RabbitMQBus) Close() error {
	var err error
	b.mu.Lock()
	if b.channel != nil {
		err = b.channel.Close()
	}
	b.mu.Unlock()
	if b.conn != nil {
		if closeErr := b.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
