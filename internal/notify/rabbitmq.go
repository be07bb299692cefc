package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher publishes notifications as persistent JSON messages on a
// durable topic exchange. The consuming notification service owns delivery.
type RabbitPublisher struct {
	url        string
	exchange   string
	routingKey string
	log        *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitPublisher(url, exchange, routingKey string, log *slog.Logger) *RabbitPublisher {
	return &RabbitPublisher{
		url:        url,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log.With("component", "rabbitmq"),
	}
}

// Connect dials the broker and declares the exchange.
func (p *RabbitPublisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

func (p *RabbitPublisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: exchange declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *RabbitPublisher) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(n.Type),
		Body:         body,
	}
	key := p.routingKey + "." + string(n.Type)
	if err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	p.log.DebugContext(ctx, "notification published",
		slog.String("routing_key", key),
		slog.String("recipient", n.RecipientID),
	)
	return nil
}

// Close releases the channel and connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *RabbitPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
