package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/internal/utils"
)

const (
	ExchangeMailtrackDirect = "mailtrack-direct"
	ExchangeDeadLetter      = "dead-letter"

	QueueTrackingEvents = "tracking-events"
	QueueRegisterSend   = "register-send"

	RoutingKeyDeadLetter    = "dead-letter"
	RoutingKeyTrackingEvent = "mailtrack-tracking-event"
	RoutingKeyRegisterSend  = "mailtrack-register-send"

	DefaultMessageTTL          = 240 * time.Hour // expired messages move to the DLQ
	DefaultMaxRetries          = 3
	DefaultPublishTimeout      = 5 * time.Second
	DefaultReconnectBackoff    = time.Second
	DefaultMaxReconnectBackoff = 30 * time.Second
)

// queueRoute is a durable work queue bound to the direct exchange, with its
// dead letters parked in "<queue>-dlq".
type queueRoute struct {
	queue      string
	routingKey string
}

func (q queueRoute) dlq() string {
	return q.queue + "-dlq"
}

var topology = []queueRoute{
	{queue: QueueTrackingEvents, routingKey: RoutingKeyTrackingEvent},
	{queue: QueueRegisterSend, routingKey: RoutingKeyRegisterSend},
}

type PublisherConfig struct {
	MessageTTL          time.Duration
	MaxRetries          int
	PublishTimeout      time.Duration
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
}

func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		MessageTTL:          DefaultMessageTTL,
		MaxRetries:          DefaultMaxRetries,
		PublishTimeout:      DefaultPublishTimeout,
		ReconnectBackoff:    DefaultReconnectBackoff,
		MaxReconnectBackoff: DefaultMaxReconnectBackoff,
	}
}

// RabbitMQPublisher publishes tracking events with publisher confirms on a
// single channel, reconnecting when the broker drops the connection.
type RabbitMQPublisher struct {
	url    string
	logger logger.Logger
	config PublisherConfig

	connMu   sync.Mutex
	conn     *amqp091.Connection
	pubMu    sync.Mutex
	channel  *amqp091.Channel
	confirms chan amqp091.Confirmation
}

func NewRabbitMQPublisher(rabbitmqURL string, logger logger.Logger, config *PublisherConfig) (*RabbitMQPublisher, error) {
	cfg := DefaultPublisherConfig()
	if config != nil {
		cfg = *config
	}

	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: logger,
		config: cfg,
	}
	if err := publisher.connect(); err != nil {
		return nil, err
	}
	return publisher, nil
}

// PublishTrackingEvent announces an appended event on the direct exchange.
func (r *RabbitMQPublisher) PublishTrackingEvent(ctx context.Context, event dto.TrackingEventRecorded) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishTrackingEvent")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, event.EventId)
	tracing.LogObjectAsJson(span, "event", event)

	body, err := json.Marshal(envelope(ctx, span, event.EventId, event.UserId, event))
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "marshalling tracking event")
	}

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxRetries; attempt++ {
		if lastErr = r.publishConfirmed(ctx, RoutingKeyTrackingEvent, body); lastErr == nil {
			return nil
		}
		r.logger.Warnf("Publishing event %s failed (attempt %d/%d): %v", event.EventId, attempt, r.config.MaxRetries, lastErr)
		if attempt < r.config.MaxRetries {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}

	err = errors.Wrapf(lastErr, "publishing event %s", event.EventId)
	tracing.TraceErr(span, err)
	return err
}

// envelope wraps a payload in the event format consumers route on. The trace
// context travels in the metadata so consumers can continue the span.
func envelope(ctx context.Context, span opentracing.Span, entityId, userId string, payload any) dto.Event {
	carrier := tracing.ExtractTextMapCarrier(span.Context())
	return dto.Event{
		Event: dto.EventDetails{
			Id:        utils.GenerateNanoIDWithPrefix("event", 21),
			UserId:    userId,
			EntityId:  entityId,
			EventType: typeName(payload),
			Data:      payload,
		},
		Metadata: dto.EventMetadata{
			UberTraceId: carrier["uber-trace-id"],
			AppSource:   utils.GetAppSourceFromContext(ctx),
			Timestamp:   utils.Now().Format(time.RFC3339),
		},
	}
}

func (r *RabbitMQPublisher) publishConfirmed(ctx context.Context, routingKey string, body []byte) error {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.ensureChannel(); err != nil {
		return err
	}

	err := r.channel.PublishWithContext(ctx, ExchangeMailtrackDirect, routingKey,
		true,  // mandatory
		false, // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    utils.Now(),
		})
	if err != nil {
		return errors.Wrap(err, "basic.publish")
	}

	timer := time.NewTimer(r.config.PublishTimeout)
	defer timer.Stop()
	select {
	case confirm := <-r.confirms:
		if !confirm.Ack {
			return errors.New("broker nacked the message")
		}
		return nil
	case <-timer.C:
		return errors.New("timed out waiting for publisher confirm")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RabbitMQPublisher) ensureChannel() error {
	if r.conn == nil || r.conn.IsClosed() {
		if err := r.connect(); err != nil {
			return err
		}
	}
	if r.channel == nil || r.channel.IsClosed() {
		return r.openChannel()
	}
	return nil
}

func (r *RabbitMQPublisher) connect() error {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	conn, err := amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to RabbitMQ")
	}
	r.conn = conn

	if err = r.declareTopology(); err != nil {
		return err
	}
	if err = r.openChannel(); err != nil {
		return err
	}

	go r.reconnectOnClose(conn)
	return nil
}

func (r *RabbitMQPublisher) openChannel() error {
	channel, err := r.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open publish channel")
	}
	if err = channel.Confirm(false); err != nil {
		channel.Close()
		return errors.Wrap(err, "Failed to enable publisher confirms")
	}

	r.confirms = channel.NotifyPublish(make(chan amqp091.Confirmation, 1))
	r.channel = channel
	return nil
}

func (r *RabbitMQPublisher) reconnectOnClose(conn *amqp091.Connection) {
	closeErr, ok := <-conn.NotifyClose(make(chan *amqp091.Error, 1))
	if !ok {
		// closed by Close
		return
	}
	r.logger.Warnf("RabbitMQ connection lost: %v", closeErr)

	backoff := r.config.ReconnectBackoff
	for {
		err := r.connect()
		if err == nil {
			r.logger.Info("Reconnected to RabbitMQ")
			return
		}
		r.logger.Errorf("Reconnecting to RabbitMQ failed, next attempt in %v: %v", backoff, err)
		time.Sleep(backoff)
		backoff = min(backoff*2, r.config.MaxReconnectBackoff)
	}
}

// declareTopology declares the direct and dead-letter exchanges plus every
// queue in topology together with its DLQ.
func (r *RabbitMQPublisher) declareTopology() error {
	channel, err := r.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open channel for topology setup")
	}
	defer channel.Close()

	for _, exchange := range []string{ExchangeDeadLetter, ExchangeMailtrackDirect} {
		if err = channel.ExchangeDeclare(exchange, amqp091.ExchangeDirect, true, false, false, false, nil); err != nil {
			return errors.Wrapf(err, "Failed to declare exchange %s", exchange)
		}
	}

	for _, route := range topology {
		if _, err = channel.QueueDeclare(route.dlq(), true, false, false, false, nil); err != nil {
			return errors.Wrapf(err, "Failed to declare DLQ %s", route.dlq())
		}
		if err = channel.QueueBind(route.dlq(), RoutingKeyDeadLetter, ExchangeDeadLetter, false, nil); err != nil {
			return errors.Wrapf(err, "Failed to bind DLQ %s", route.dlq())
		}

		args := amqp091.Table{
			"x-dead-letter-exchange":    ExchangeDeadLetter,
			"x-dead-letter-routing-key": RoutingKeyDeadLetter,
			"x-message-ttl":             r.config.MessageTTL.Milliseconds(),
		}
		if _, err = channel.QueueDeclare(route.queue, true, false, false, false, args); err != nil {
			return errors.Wrapf(err, "Failed to declare queue %s", route.queue)
		}
		if err = channel.QueueBind(route.queue, route.routingKey, ExchangeMailtrackDirect, false, nil); err != nil {
			return errors.Wrapf(err, "Failed to bind queue %s", route.queue)
		}
	}
	return nil
}

// Close shuts the publish channel and the connection.
func (r *RabbitMQPublisher) Close() error {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	var err error
	if r.channel != nil {
		if err = r.channel.Close(); err != nil {
			r.logger.Errorf("Error closing publish channel: %v", err)
		}
	}
	if r.conn != nil {
		if closeErr := r.conn.Close(); closeErr != nil {
			r.logger.Errorf("Error closing RabbitMQ connection: %v", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}
	return err
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishTrackingEvent(context.Context, dto.TrackingEventRecorded) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
