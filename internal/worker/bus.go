package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Handler receives one message routed by the bus.
type Handler func(ctx context.Context, id string, routingKey string, payload []byte) error

type Message struct {
	ID         string
	RoutingKey string
	Payload    []byte
}

type subscription struct {
	pattern string
	handler Handler
}

// InMemoryBus is an in-process topic exchange. Handlers run synchronously
// on the publisher's goroutine.
type InMemoryBus struct {
	mu        sync.RWMutex
	subs      []subscription
	published []Message
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{}
}

// Subscribe binds handler to a topic pattern ("*" one word, "#" zero or more).
func (b *InMemoryBus) Subscribe(pattern string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{pattern: pattern, handler: handler})
}

// Publish implements the Publisher interface.
func (b *InMemoryBus) Publish(ctx context.Context, id string, routingKey string, payload []byte) error {
	b.mu.Lock()
	b.published = append(b.published, Message{ID: id, RoutingKey: routingKey, Payload: append([]byte(nil), payload...)})
	var targets []Handler
	for _, s := range b.subs {
		if TopicMatches(s.pattern, routingKey) {
			targets = append(targets, s.handler)
		}
	}
	b.mu.Unlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, id, routingKey, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Published returns every message seen so far, in order.
func (b *InMemoryBus) Published() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Message(nil), b.published...)
}

// TopicMatches applies AMQP topic-exchange matching of routingKey against pattern.
func TopicMatches(pattern, routingKey string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchWords(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchWords(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != pattern[0] {
				return false
			}
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}
