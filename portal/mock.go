package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/eclipse/paho.golang/paho"
	"github.com/lefinal/pug-server/event"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stub mocks Portal. Logger always returns a nop logger.
type Stub struct {
	mock.Mock
}

func (s *Stub) Subscribe(ctx context.Context, topic Topic) *Newsletter[any] {
	return s.Called(ctx, topic).Get(0).(*Newsletter[any])
}

func (s *Stub) Publish(ctx context.Context, topic Topic, payload interface{}) {
	s.Called(ctx, topic, payload)
}

func (s *Stub) Logger() *zap.Logger {
	return zap.New(zapcore.NewNopCore())
}

// NewSelfClosingMockNewsletter returns a Newsletter that never receives
// anything and closes when the context is done or it is unsubscribed.
func NewSelfClosingMockNewsletter(ctx context.Context) *Newsletter[any] {
	return NewSelfClosingReceivingMockNewsletter(ctx, nil)
}

// NewSelfClosingReceivingMockNewsletter returns a Newsletter that forwards
// events from the given channel. The payload of each event is marshalled into
// the publish payload, just like a message coming from the broker. The
// Newsletter closes when the context is done, it is unsubscribed or forward
// is closed. A nil forward channel never delivers.
func NewSelfClosingReceivingMockNewsletter(ctx context.Context, forward <-chan event.Event[any]) *Newsletter[any] {
	lifetime, cancel := context.WithCancel(ctx)
	receive := make(chan event.Event[any])
	go func() {
		defer close(receive)
		for {
			var e event.Event[any]
			var more bool
			select {
			case <-lifetime.Done():
				return
			case e, more = <-forward:
			}
			if !more {
				return
			}
			select {
			case <-lifetime.Done():
				return
			case receive <- asBrokerMessage(e):
			}
		}
	}()
	return &Newsletter[any]{
		unregisterFn: cancel,
		Receive:      receive,
	}
}

// asBrokerMessage moves the payload of the event into its raw publish.
func asBrokerMessage(e event.Event[any]) event.Event[any] {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		panic(fmt.Sprintf("marshal mock payload: %v", err))
	}
	publish := &paho.Publish{}
	if e.Publish != nil {
		p := *e.Publish
		publish = &p
	}
	publish.Payload = raw
	return event.Event[any]{Publish: publish}
}
