package portal

import (
	"context"
	"github.com/eclipse/paho.golang/paho"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/event"
	"go.uber.org/zap"
	"sync"
)

// mqttRouter is the part of paho.Router that router needs.
type mqttRouter interface {
	RegisterHandler(topic string, handler paho.MessageHandler)
	UnregisterHandler(topic string)
}

// subscriber receives forwarded messages until its lifetime is done.
type subscriber struct {
	lifetime context.Context
	forward  chan<- event.Event[any]
}

// deliver the publish or give up when the lifetime is done.
func (s *subscriber) deliver(publish *paho.Publish) {
	select {
	case <-s.lifetime.Done():
	case s.forward <- event.Event[any]{Publish: publish}:
	}
}

// route multiplexes one MQTT topic to its subscribers.
type route struct {
	subscribers map[uint64]*subscriber
}

// router registers exactly one paho handler per topic and fans incoming
// messages out to all subscribers of that topic.
type router struct {
	logger *zap.Logger
	mqtt   mqttRouter
	// routes holds all routes by topic. It is locked by m.
	routes map[Topic]*route
	nextID uint64
	m      sync.RWMutex
}

func newRouter(logger *zap.Logger, mqtt mqttRouter) *router {
	return &router{
		logger: logger,
		mqtt:   mqtt,
		routes: make(map[Topic]*route),
	}
}

// subscribe forwards messages for the topic to the given channel until the
// lifetime is done.
func (r *router) subscribe(lifetime context.Context, topic Topic, forward chan<- event.Event[any]) {
	r.m.Lock()
	rt, ok := r.routes[topic]
	if !ok {
		rt = &route{subscribers: make(map[uint64]*subscriber)}
		r.routes[topic] = rt
		r.mqtt.RegisterHandler(string(topic), r.handler(topic))
		r.logger.Debug("subscribed to topic", zap.Any("topic", topic))
	}
	id := r.nextID
	r.nextID++
	rt.subscribers[id] = &subscriber{
		lifetime: lifetime,
		forward:  forward,
	}
	r.m.Unlock()
	go func() {
		<-lifetime.Done()
		r.unsubscribe(topic, id)
	}()
}

// handler returns the paho.MessageHandler for the topic. It blocks until every
// subscriber received the message or ended.
func (r *router) handler(topic Topic) paho.MessageHandler {
	return func(publish *paho.Publish) {
		r.m.RLock()
		var targets []*subscriber
		if rt, ok := r.routes[topic]; ok {
			targets = make([]*subscriber, 0, len(rt.subscribers))
			for _, s := range rt.subscribers {
				targets = append(targets, s)
			}
		}
		r.m.RUnlock()
		var wg sync.WaitGroup
		wg.Add(len(targets))
		for _, s := range targets {
			go func(s *subscriber) {
				defer wg.Done()
				s.deliver(publish)
			}(s)
		}
		wg.Wait()
	}
}

// unsubscribe removes the subscriber and unregisters the topic handler if it
// was the last one.
func (r *router) unsubscribe(topic Topic, id uint64) {
	r.m.Lock()
	defer r.m.Unlock()
	rt, ok := r.routes[topic]
	if !ok {
		errors.Log(r.logger, errors.NewInternalError("unsubscribe for unknown route", errors.Details{"topic": topic}))
		return
	}
	if _, ok := rt.subscribers[id]; !ok {
		errors.Log(r.logger, errors.NewInternalError("unsubscribe for unknown subscriber",
			errors.Details{"topic": topic, "subscriber": id}))
		return
	}
	delete(rt.subscribers, id)
	if len(rt.subscribers) > 0 {
		return
	}
	delete(r.routes, topic)
	r.mqtt.UnregisterHandler(string(topic))
}
