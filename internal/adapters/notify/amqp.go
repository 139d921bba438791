package notify

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher fans archived polls out through a durable fanout exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
}

var _ ports.ResultPublisher = (*AMQPPublisher)(nil)

func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}

	p, err := newAMQPPublisher(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, exchange string) (*AMQPPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Name() string { return "amqp" }

// Publish ignores ctx; the streadway client has no context-aware publish.
func (p *AMQPPublisher) Publish(_ context.Context, poll *domain.ArchivedPoll) error {
	body, err := encode(poll)
	if err != nil {
		return err
	}
	err = p.channel.Publish(p.exchange, "", false, false, amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    poll.ID.String(),
		Timestamp:    poll.EndedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to exchange %s: %w", p.exchange, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
