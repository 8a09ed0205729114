// Package events publishes domain events to RabbitMQ, one durable queue per topic.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"spherelink/internal/adapters/observability"
)

const (
	dialTimeout = 2 * time.Second
	minBackoff  = time.Second
	maxBackoff  = 30 * time.Second
)

// ErrBrokerBackoff is returned without dialling while a failed broker is
// cooling down.
var ErrBrokerBackoff = errors.New("rabbitmq unavailable, retry pending")

type Publisher struct {
	url  string
	dial func(url string, cfg amqp.Config) (*amqp.Connection, error)
	now  func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
	backoff  time.Duration
	retryAt  time.Time
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, dial: amqp.DialConfig, now: time.Now, declared: map[string]bool{}}
}

// Publish sends payload as a persistent JSON message routed to the queue named topic.
// A broken connection is dropped and redialled on a later call. After a failed
// dial further calls fail fast with ErrBrokerBackoff until the backoff, which
// doubles per failure up to maxBackoff, has elapsed.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		observability.ObserveEvent(topic, "error")
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensure(topic); err != nil {
		p.reset()
		observability.ObserveEvent(topic, "error")
		return err
	}
	err = p.ch.PublishWithContext(ctx,
		"",    // default exchange
		topic, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.reset()
		observability.ObserveEvent(topic, "error")
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	observability.ObserveEvent(topic, "ok")
	return nil
}

func (p *Publisher) ensure(topic string) error {
	if p.conn == nil || p.conn.IsClosed() {
		if p.now().Before(p.retryAt) {
			return ErrBrokerBackoff
		}
		conn, err := p.dial(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
		if err != nil {
			p.backoff = min(max(2*p.backoff, minBackoff), maxBackoff)
			p.retryAt = p.now().Add(p.backoff)
			log.Warn().Err(err).Dur("retry_in", p.backoff).Msg("rabbitmq dial failed")
			return fmt.Errorf("rabbitmq dial: %w", err)
		}
		p.backoff, p.retryAt = 0, time.Time{}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("rabbitmq channel: %w", err)
		}
		p.conn, p.ch = conn, ch
		p.declared = map[string]bool{}
	}
	if p.declared[topic] {
		return nil
	}
	if _, err := p.ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq declare %s: %w", topic, err)
	}
	p.declared[topic] = true
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// Noop drops every event. Used when AMQP_URL is unset.
type Noop struct{}

func (Noop) Publish(_ context.Context, topic string, _ any) error {
	log.Debug().Str("topic", topic).Msg("event dropped: no broker configured")
	return nil
}
