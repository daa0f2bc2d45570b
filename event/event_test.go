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

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/conclave-labs/conclave/event"
)

func TestBusSingleSubscriber(t *testing.T) {
	var testEvtData int = 999
	var testEvtType event.EventType = "test.event"
	eb := event.NewBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, testEvtData))
	select {
	case evt, ok := <-subCh:
		if !ok {
			t.Fatalf("event channel closed unexpectedly")
		}
		switch v := evt.Data.(type) {
		case int:
			if v != testEvtData {
				t.Fatalf("did not get expected event")
			}
		default:
			t.Fatalf(
				"event data was not of expected type, expected int, got %T",
				evt.Data,
			)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	var testEvtData int = 999
	var testEvtType event.EventType = "test.event"
	eb := event.NewBus(nil, nil)
	defer eb.Stop()
	_, sub1Ch := eb.Subscribe(testEvtType)
	_, sub2Ch := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, testEvtData))
	for _, subCh := range []<-chan event.Event{sub1Ch, sub2Ch} {
		select {
		case evt, ok := <-subCh:
			if !ok {
				t.Fatalf("event channel closed unexpectedly")
			}
			if v, ok := evt.Data.(int); !ok || v != testEvtData {
				t.Fatalf("did not get expected event: %v", evt.Data)
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout waiting for event")
		}
	}
}

func TestBusSubscribeFunc(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	var callCount atomic.Int64
	eb := event.NewBus(nil, nil)
	defer eb.Stop()
	eb.SubscribeFunc(testEvtType, func(evt event.Event) {
		callCount.Add(1)
	})
	for i := 0; i < 3; i++ {
		eb.Publish(testEvtType, event.NewEvent(testEvtType, nil))
	}
	deadline := time.Now().Add(1 * time.Second)
	for callCount.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf(
				"timeout waiting for handler calls: got %d, wanted 3",
				callCount.Load(),
			)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Unsubscribe(testEvtType, subId)
	if _, ok := <-subCh; ok {
		t.Fatalf("expected channel to be closed after unsubscribe")
	}
	// Publishing after unsubscribe should not panic or block
	eb.Publish(testEvtType, event.NewEvent(testEvtType, nil))
}

func TestBusPublishAsync(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewBus(nil, nil)
	_, subCh := eb.Subscribe(testEvtType)
	if !eb.PublishAsync(testEvtType, event.NewEvent(testEvtType, 42)) {
		t.Fatalf("async publish rejected")
	}
	select {
	case evt := <-subCh:
		if v, ok := evt.Data.(int); !ok || v != 42 {
			t.Fatalf("did not get expected event: %v", evt.Data)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for async event")
	}
	eb.Stop()
	if eb.PublishAsync(testEvtType, event.NewEvent(testEvtType, 43)) {
		t.Fatalf("async publish accepted after stop")
	}
}
