package events

import (
	"fmt"

	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/logger"
)

type EventsService struct {
	Publisher  interfaces.EventPublisher
	Subscriber *RabbitMQSubscriber
}

// NewEventsService connects to RabbitMQ. An empty url yields a noop
// publisher and no subscriber.
func NewEventsService(rabbitmqURL string, log logger.Logger, publisherConfig *PublisherConfig, subscriberConfig *SubscriberConfig) (*EventsService, error) {
	if rabbitmqURL == "" {
		log.Warn("RABBITMQ_URL not set, tracking events will not be published")
		return &EventsService{Publisher: NoopPublisher{}}, nil
	}

	publisher, err := NewRabbitMQPublisher(rabbitmqURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	subscriber, err := NewRabbitMQSubscriber(rabbitmqURL, log, subscriberConfig)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	return &EventsService{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// RegisterAndListen attaches listeners and starts consuming their queues
func (s *EventsService) RegisterAndListen(listeners ...EventListener) error {
	if s.Subscriber == nil {
		return nil
	}
	queues := make(map[string]struct{})
	for _, l := range listeners {
		s.Subscriber.RegisterListener(l)
		queues[l.GetQueueName()] = struct{}{}
	}
	for queue := range queues {
		if err := s.Subscriber.ListenQueue(queue); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventsService) Close() error {
	var errs []error

	if s.Subscriber != nil {
		if err := s.Subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing events service: %v", errs)
	}

	return nil
}
