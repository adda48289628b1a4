// Package broker consumes state-tracking messages from a topic exchange. A
// handler error means the message can never succeed, so it is rejected
// without requeue rather than reprocessed forever.
package broker

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/submission-hub/submission-hub/internal/application/receiver"
	"github.com/submission-hub/submission-hub/internal/domain/envelope"
)

// Routing keys the tracker subscribes to.
const (
	RouteEnvelopeCreated    = "envelope.created"
	RouteStateUpdateRequest = "envelope.state.update"
	RouteDocumentUpdated    = "document.state.updated"
	RouteDocumentProcessing = "document.processing"
	RouteDocumentCompleted  = "document.completed"
)

// Consumer binds one queue per routing key on the configured topic exchange
// and feeds decoded messages to the receiver.
type Consumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	recv     *receiver.Receiver
	logger   zerolog.Logger
	done     chan struct{}
}

func NewConsumer(url, exchange, queuePrefix string, recv *receiver.Receiver, logger zerolog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Consumer{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		queue:    queuePrefix,
		recv:     recv,
		logger:   logger.With().Str("service", "broker").Logger(),
		done:     make(chan struct{}),
	}, nil
}

// Start declares and binds the queues and begins consuming. Each queue gets
// its own goroutine; handler failures reject the message without requeue.
func (c *Consumer) Start() error {
	routes := []string{
		RouteEnvelopeCreated,
		RouteStateUpdateRequest,
		RouteDocumentUpdated,
		RouteDocumentProcessing,
		RouteDocumentCompleted,
	}
	for _, route := range routes {
		name := c.queue + "." + route
		q, err := c.channel.QueueDeclare(name, true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
		if err := c.channel.QueueBind(q.Name, route, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", name, err)
		}
		deliveries, err := c.channel.Consume(q.Name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume queue %s: %w", name, err)
		}
		go c.consume(route, deliveries)
	}
	c.logger.Info().Str("exchange", c.exchange).Msg("broker consumer started")
	return nil
}

func (c *Consumer) consume(route string, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := c.handle(route, d.Body); err != nil {
				c.logger.Error().Err(err).
					Str("route", route).
					Str("payload", string(d.Body)).
					Msg("rejecting message without requeue")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(route string, body []byte) error {
	switch route {
	case RouteEnvelopeCreated:
		var msg EnvelopeCreatedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode envelope-created: %w", err)
		}
		ref, err := envelopeRef(msg.ID, msg.UUID, msg.Callback)
		if err != nil {
			return err
		}
		return c.recv.EnvelopeCreated(ref)

	case RouteStateUpdateRequest:
		var msg StateUpdateRequestMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode state-update-request: %w", err)
		}
		ref, err := envelopeRef(msg.ID, msg.UUID, msg.Callback)
		if err != nil {
			return err
		}
		return c.recv.StateUpdateRequested(ref, msg.RequestedState)

	case RouteDocumentUpdated:
		var msg DocumentStateUpdatedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode document-updated: %w", err)
		}
		docUUID, err := uuid.Parse(msg.UUID)
		if err != nil {
			return fmt.Errorf("malformed document uuid %q: %w", msg.UUID, err)
		}
		doc := envelope.DocumentReference{ID: msg.ID, UUID: docUUID, Callback: msg.Callback}
		return c.recv.DocumentStateUpdated(doc, msg.ValidationState)

	case RouteDocumentProcessing, RouteDocumentCompleted:
		var msg DocumentProgressMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode document-progress: %w", err)
		}
		envUUID, err := uuid.Parse(msg.EnvelopeUUID)
		if err != nil {
			return fmt.Errorf("malformed envelope uuid %q: %w", msg.EnvelopeUUID, err)
		}
		if route == RouteDocumentProcessing {
			return c.recv.DocumentProcessing(envUUID, msg.DocumentID, msg.Total)
		}
		return c.recv.DocumentCompleted(envUUID, msg.DocumentID, msg.Total)

	default:
		return fmt.Errorf("no handler for route %s", route)
	}
}

// Close stops the consumer goroutines and closes the connection.
func (c *Consumer) Close() error {
	close(c.done)
	if err := c.channel.Close(); err != nil {
		_ = c.conn.Close()
		return err
	}
	return c.conn.Close()
}

func envelopeRef(id, rawUUID, callback string) (envelope.Reference, error) {
	u, err := uuid.Parse(rawUUID)
	if err != nil {
		return envelope.Reference{}, fmt.Errorf("malformed envelope uuid %q: %w", rawUUID, err)
	}
	return envelope.Reference{ID: id, UUID: u, Callback: callback}, nil
}
