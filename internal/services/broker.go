package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

const bookingExchange = "booking_events"

// AMQPPublisher puts booking lifecycle events on a topic exchange so other
// services can follow bookings without polling the API.
type AMQPPublisher struct {
	url string
	log logger.ILogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string, log logger.ILogger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, log: log}
	if err := p.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return p, nil
}

// connect to rabbitmq and declare the exchange. Caller holds mu or owns p.
func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(bookingExchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return err
	}
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *AMQPPublisher) PublishBookingEvent(ctx context.Context, e BookingEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.log.Warning("rabbitmq connection lost, reconnecting")
		if err := p.connect(); err != nil {
			return fmt.Errorf("reconnect rabbitmq: %w", err)
		}
	}

	return p.ch.PublishWithContext(ctx, bookingExchange, e.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.BookingID + ":" + string(e.Status),
		Timestamp:    e.OccurredAt,
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil && !p.ch.IsClosed() {
		if err := p.ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq channel: %w", err))
		}
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
