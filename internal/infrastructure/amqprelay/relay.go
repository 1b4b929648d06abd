// Package amqprelay forwards booking events from the in-process bus to a RabbitMQ
// topic exchange so other systems can follow the booking lifecycle.
package amqprelay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/booking"
	domoutbox "github.com/Zhima-Mochi/krishi-prebook/internal/domain/outbox"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeType = "topic"
	peerAMQP     = "rabbitmq"
)

// Channel is the slice of *amqp.Channel the relay publishes through.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Relay struct {
	ch           Channel
	exchange     string
	log          observability.Logger
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func New(ch Channel, exchange string, tel observability.Observability) *Relay {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Relay{
		ch:           ch,
		exchange:     exchange,
		log:          tel.Logger().With(observability.F("component", "amqp_relay")),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Events lists the bus events the relay forwards.
var Events = []string{
	booking.BookingCreatedEvent{}.EventName(),
	booking.BookingStatusChangedEvent{}.EventName(),
}

type createdMessage struct {
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	ProductID  string    `json:"product_id"`
	OfficeID   string    `json:"office_id"`
	Quantity   int       `json:"quantity"`
	Total      string    `json:"total"`
	Deadline   time.Time `json:"deadline"`
	OccurredAt time.Time `json:"occurred_at"`
}

type statusChangedMessage struct {
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RoutingKey places created events under booking.created.<office> and status
// changes under booking.status_changed.<new status>.
func RoutingKey(e domoutbox.Event) (string, error) {
	switch ev := e.(type) {
	case booking.BookingCreatedEvent:
		return fmt.Sprintf("%s.%s", ev.EventName(), ev.OfficeID), nil
	case booking.BookingStatusChangedEvent:
		return fmt.Sprintf("%s.%s", ev.EventName(), ev.To), nil
	default:
		return "", fmt.Errorf("amqprelay: unsupported event %s", e.EventName())
	}
}

func encode(e domoutbox.Event) ([]byte, error) {
	switch ev := e.(type) {
	case booking.BookingCreatedEvent:
		return json.Marshal(createdMessage{
			BookingID:  ev.BookingID,
			UserID:     ev.UserID,
			ProductID:  ev.ProductID,
			OfficeID:   ev.OfficeID,
			Quantity:   ev.Quantity,
			Total:      ev.Total.StringFixed(2),
			Deadline:   ev.Deadline,
			OccurredAt: ev.OccurredAt,
		})
	case booking.BookingStatusChangedEvent:
		return json.Marshal(statusChangedMessage{
			BookingID:  ev.BookingID,
			UserID:     ev.UserID,
			From:       string(ev.From),
			To:         string(ev.To),
			OccurredAt: ev.OccurredAt,
		})
	default:
		return nil, fmt.Errorf("amqprelay: unsupported event %s", e.EventName())
	}
}

func (r *Relay) Handle(ctx context.Context, e domoutbox.Event) error {
	key, err := RoutingKey(e)
	if err != nil {
		return err
	}
	body, err := encode(e)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}

	start := time.Now()
	err = r.ch.PublishWithContext(ctx,
		r.exchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    start.UTC(),
			Type:         e.EventName(),
			Body:         body,
		},
	)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.extCounter.Add(1,
		observability.L("peer", peerAMQP),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	r.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peerAMQP),
		observability.L("endpoint", e.EventName()),
	)
	if err != nil {
		return fmt.Errorf("amqprelay: publish %s: %w", key, err)
	}
	logctx.FromOr(ctx, r.log).Debug("event_relayed", observability.F("routing_key", key))
	return nil
}

// Dial connects, opens a channel and declares the topic exchange, retrying the
// connection a few times while the broker comes up.
func Dial(ctx context.Context, url, exchange string, log observability.Logger) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn("amqp_dial_failed", observability.F("attempt", i+1), observability.F("error", err.Error()))
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, ExchangeType, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}
