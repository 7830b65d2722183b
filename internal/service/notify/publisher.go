// Package notify announces completed intakes to downstream systems.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/config"
	"github.com/zhouzirui/talentscout/backend/internal/logging"
	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
)

// EventCandidateCompleted is emitted after a record has been persisted.
const EventCandidateCompleted = "candidate.completed"

// Event is the message body published on completion.
type Event struct {
	Event     string           `json:"event"`
	SessionID string           `json:"sessionId"`
	Record    candidate.Record `json:"record"`
}

// Publisher delivers events. Delivery failures never affect the conversation.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// New returns an AMQP publisher when a broker is configured, otherwise a no-op.
func New(cfg config.NotifyConfig, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled() {
		return Nop{}, nil
	}
	p, err := DialAMQP(cfg.AMQPURL, cfg.Exchange, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes JSON events to a topic exchange with the event name as routing key.
type AMQPPublisher struct {
	conn     *amqp.Connection
	open     func() (amqpChannel, error)
	exchange string
	logger   *zap.Logger
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	p := &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		logger:   logging.OrNop(logger).Named("notify"),
	}
	p.open = func() (amqpChannel, error) { return conn.Channel() }
	return p, nil
}

// Publish opens a short-lived channel per event.
func (p *AMQPPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	err = ch.Publish(
		p.exchange,
		evt.Event,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   evt.SessionID,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Event, err)
	}

	p.logger.Debug("published event", zap.String("event", evt.Event), zap.String("session", evt.SessionID))
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
