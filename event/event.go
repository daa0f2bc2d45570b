// Copyright 2026 Conclave Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package event provides the typed pub/sub bus that carries configuration
// changes, session lifecycle notifications, and audit fan-out between the
// approval gate's subsystems.
package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	EventQueueSize      = 20
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 4
)

type EventType string

type SubscriberId int

type HandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

// asyncEvent wraps an event with its type for the async queue
type asyncEvent struct {
	eventType EventType
	event     Event
}

// subscription owns the delivery channel for one subscriber. The mutex
// serializes sends against close so a Publish racing an Unsubscribe cannot
// send on a closed channel.
type subscription struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

func newSubscription(buffer int) *subscription {
	return &subscription{
		ch: make(chan Event, buffer),
	}
}

func (s *subscription) deliver(evt Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		// Subscriber already closed; drop the event
		return
	}
	s.ch <- evt
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

type busMetrics struct {
	eventsTotal *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
}

type Bus struct {
	subscribers map[EventType]map[SubscriberId]*subscription
	metrics     *busMetrics
	lastSubId   SubscriberId
	mu          sync.RWMutex
	logger      *slog.Logger

	asyncQueue chan asyncEvent
	asyncWg    sync.WaitGroup
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewBus creates a new event bus with an async worker pool for
// fire-and-forget publishing
func NewBus(promRegistry prometheus.Registerer, logger *slog.Logger) *Bus {
	b := &Bus{
		subscribers: make(map[EventType]map[SubscriberId]*subscription),
		logger:      logger,
		asyncQueue:  make(chan asyncEvent, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		promautoFactory := promauto.With(promRegistry)
		b.metrics = &busMetrics{
			eventsTotal: promautoFactory.NewCounterVec(
				prometheus.CounterOpts{
					Name: "conclave_eventbus_events_total",
					Help: "total events published by type",
				},
				[]string{"type"},
			),
			subscribers: promautoFactory.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "conclave_eventbus_subscribers",
					Help: "current subscribers by type",
				},
				[]string{"type"},
			),
		}
	}
	for i := 0; i < AsyncWorkerPoolSize; i++ {
		b.asyncWg.Add(1)
		go b.asyncWorker()
	}
	return b
}

func (b *Bus) asyncWorker() {
	defer b.asyncWg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		case ae, ok := <-b.asyncQueue:
			if !ok {
				return
			}
			b.Publish(ae.eventType, ae.event)
		}
	}
}

// Subscribe allows a consumer to receive events of a particular type via a channel
func (b *Bus) Subscribe(eventType EventType) (SubscriberId, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := newSubscription(EventQueueSize)
	subId := b.lastSubId + 1
	b.lastSubId = subId
	if _, ok := b.subscribers[eventType]; !ok {
		b.subscribers[eventType] = make(map[SubscriberId]*subscription)
	}
	b.subscribers[eventType][subId] = sub
	if b.metrics != nil {
		b.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return subId, sub.ch
}

// SubscribeFunc allows a consumer to receive events of a particular type via a callback function
func (b *Bus) SubscribeFunc(
	eventType EventType,
	handlerFunc HandlerFunc,
) SubscriberId {
	subId, evtCh := b.Subscribe(eventType)
	go func(evtCh <-chan Event, handlerFunc HandlerFunc) {
		for {
			evt, ok := <-evtCh
			if !ok {
				return
			}
			handlerFunc(evt)
		}
	}(evtCh, handlerFunc)
	return subId
}

// Unsubscribe stops delivery of events for a particular type for an existing subscriber
func (b *Bus) Unsubscribe(eventType EventType, subId SubscriberId) {
	b.mu.Lock()
	var subToClose *subscription
	if evtTypeSubs, ok := b.subscribers[eventType]; ok {
		if sub, ok2 := evtTypeSubs[subId]; ok2 {
			subToClose = sub
			delete(evtTypeSubs, subId)
			if len(evtTypeSubs) == 0 {
				delete(b.subscribers, eventType)
			}
			if b.metrics != nil {
				b.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
			}
		}
	}
	b.mu.Unlock()
	if subToClose != nil {
		subToClose.close()
	}
}

// Publish delivers an event of a particular type to all subscribers,
// blocking until each subscriber's queue accepts it
func (b *Bus) Publish(eventType EventType, evt Event) {
	// Gather subscriptions inside the read lock, deliver outside it
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subscribers[eventType]))
	for _, sub := range b.subscribers[eventType] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()
	for _, sub := range subs {
		sub.deliver(evt)
	}
	if b.metrics != nil {
		b.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// PublishAsync enqueues an event for asynchronous delivery to all
// subscribers and returns immediately. Returns false if the bus is stopped
// or the async queue is full, in which case the event is dropped.
func (b *Bus) PublishAsync(eventType EventType, evt Event) bool {
	select {
	case <-b.stopCh:
		return false
	default:
	}
	select {
	case b.asyncQueue <- asyncEvent{eventType: eventType, event: evt}:
		return true
	default:
		if b.logger != nil {
			b.logger.Warn(
				"async event queue full, dropping event",
				"type", eventType,
				"component", "eventbus",
			)
		}
		return false
	}
}

// Stop shuts down the async worker pool and closes all subscriber channels.
// Safe to call multiple times.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.asyncWg.Wait()
		b.mu.Lock()
		subs := []*subscription{}
		for _, evtTypeSubs := range b.subscribers {
			for _, sub := range evtTypeSubs {
				subs = append(subs, sub)
			}
		}
		b.subscribers = make(map[EventType]map[SubscriberId]*subscription)
		b.mu.Unlock()
		for _, sub := range subs {
			sub.close()
		}
	})
}
