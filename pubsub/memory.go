// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package pubsub

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/atomic"
)

var (
	errBusUnavailable = errors.New("bus is unavailable")
	errBrokerDown     = errors.New("broker connection is down")
)

type memorySubscription struct {
	filter  Topic
	handler MessageHandler
}

// Bus is an in-process broker shared by MemoryBroker instances. It is meant
// for simulations running many devices in a single process.
type Bus struct {
	mu        sync.RWMutex
	brokers   map[*MemoryBroker][]memorySubscription
	available *atomic.Bool
}

// NewBus creates an available Bus
func NewBus() *Bus {
	return &Bus{
		brokers:   make(map[*MemoryBroker][]memorySubscription),
		available: atomic.NewBool(true),
	}
}

// SetAvailable makes later connections succeed or fail
func (b *Bus) SetAvailable(available bool) {
	b.available.Store(available)
}

// Broker returns a new connection to the bus
func (b *Bus) Broker() *MemoryBroker {
	return &MemoryBroker{bus: b, up: atomic.NewBool(false)}
}

func (b *Bus) publish(topic Topic, payload []byte) {
	b.mu.RLock()
	var handlers []MessageHandler
	for broker, subscriptions := range b.brokers {
		if !broker.up.Load() {
			continue
		}
		for _, subscription := range subscriptions {
			if subscription.filter.Matches(topic) {
				handlers = append(handlers, subscription.handler)
			}
		}
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(slices.Clone(topic), slices.Clone(payload))
	}
}

// MemoryBroker is a Broker connected to a Bus. Messages are delivered
// synchronously on the publishing goroutine.
type MemoryBroker struct {
	bus      *Bus
	up       *atomic.Bool
	mu       sync.Mutex
	listener ConnectionListener
}

// enforce compilation error
var _ Broker = (*MemoryBroker)(nil)

// Connect implements Broker
func (m *MemoryBroker) Connect(ctx context.Context, listener ConnectionListener) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !m.bus.available.Load() {
		return errBusUnavailable
	}

	m.mu.Lock()
	m.listener = listener
	m.mu.Unlock()

	m.bus.mu.Lock()
	if _, ok := m.bus.brokers[m]; !ok {
		m.bus.brokers[m] = nil
	}
	m.bus.mu.Unlock()
	m.up.Store(true)
	return nil
}

// Subscribe implements Broker
func (m *MemoryBroker) Subscribe(_ context.Context, filter Topic, handler MessageHandler) error {
	if !m.up.Load() {
		return errBrokerDown
	}

	m.bus.mu.Lock()
	m.bus.brokers[m] = append(m.bus.brokers[m], memorySubscription{filter: slices.Clone(filter), handler: handler})
	m.bus.mu.Unlock()
	return nil
}

// Publish implements Broker
func (m *MemoryBroker) Publish(ctx context.Context, topic Topic, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.up.Load() {
		return errBrokerDown
	}
	m.bus.publish(topic, payload)
	return nil
}

// Close implements Broker
func (m *MemoryBroker) Close(context.Context) error {
	m.up.Store(false)
	m.bus.mu.Lock()
	delete(m.bus.brokers, m)
	m.bus.mu.Unlock()
	return nil
}

// SetConnected simulates the loss or the recovery of the connection.
// Subscriptions survive, as they do on brokers that resubscribe on reconnection.
func (m *MemoryBroker) SetConnected(connected bool) {
	if m.up.Swap(connected) == connected {
		return
	}

	m.mu.Lock()
	listener := m.listener
	m.mu.Unlock()
	if listener != nil {
		listener(connected)
	}
}
