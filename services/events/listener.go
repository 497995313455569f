package events

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/internal/tracing"
)

// EventListener consumes one event type from one queue.
type EventListener interface {
	Handle(ctx context.Context, baseEvent any) error
	GetEventType() string
	GetQueueName() string
}

// Binding routes the event type named after T to a queue. Listeners embed it
// to satisfy the routing half of EventListener.
type Binding[T any] struct {
	queueName string
}

func Bind[T any](queueName string) Binding[T] {
	return Binding[T]{queueName: queueName}
}

func (b Binding[T]) GetEventType() string {
	return GetEventType[T]()
}

func (b Binding[T]) GetQueueName() string {
	return b.queueName
}

// Decode checks the envelope handed over by the subscriber and unpacks its
// payload into T.
func (b Binding[T]) Decode(ctx context.Context, input any) (*dto.Event, T, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "Binding.Decode")
	defer span.Finish()
	span.SetTag("event.type", b.GetEventType())

	var payload T
	event, ok := input.(dto.Event)
	switch {
	case !ok:
		return b.fail(span, errors.Errorf("unexpected event envelope %T", input))
	case event.Event.EventType != b.GetEventType():
		return b.fail(span, errors.Errorf("event type %q routed to %s listener", event.Event.EventType, b.GetEventType()))
	case event.Event.Data == nil:
		return b.fail(span, errors.New("event data is empty"))
	}

	// Data arrives as a generic JSON object; reshape it through its encoding.
	raw, err := json.Marshal(event.Event.Data)
	if err != nil {
		return b.fail(span, errors.Wrap(err, "re-encoding event data"))
	}
	if err = json.Unmarshal(raw, &payload); err != nil {
		return b.fail(span, errors.Wrapf(err, "decoding %s", b.GetEventType()))
	}
	return &event, payload, nil
}

func (b Binding[T]) fail(span opentracing.Span, err error) (*dto.Event, T, error) {
	var zero T
	tracing.TraceErr(span, err)
	return nil, zero, err
}

// GetEventType names the event carrying a T, which is the payload's type name.
func GetEventType[T any]() string {
	var t T
	return typeName(t)
}

func typeName(v any) string {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return ""
	}
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt.Name()
}
