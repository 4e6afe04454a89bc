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

// Package pubsub moves mailbox envelopes through a publish/subscribe broker.
//
// Two deployment patterns are supported. With the shared pattern every device
// publishes on its own topic and subscribes to the topics of all the others.
// With the directed pattern every device announces its presence, learns its
// neighbors from their announcements and publishes to each neighbor inbox.
package pubsub

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/fieldmesh/mailbox/envelope"
	gerrors "github.com/fieldmesh/mailbox/errors"
	"github.com/fieldmesh/mailbox/internal/ticker"
	"github.com/fieldmesh/mailbox/internal/xsync"
	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/transport"
)

type pendingSend struct {
	topic   Topic
	payload []byte
}

// Adapter is a transport over a publish/subscribe broker using the shared
// pattern: a device publishes on <namespace>/<id>/neighbors and receives from
// <namespace>/+/neighbors.
type Adapter struct {
	config   *Config
	broker   Broker
	logger   log.Logger
	clock    func() time.Time
	directed bool

	// startMu serializes Start and Stop
	startMu   sync.Mutex
	state     *atomic.Int32
	connected bool

	handler  transport.Handler
	dispatch sync.RWMutex

	pendingMu sync.Mutex
	pending   []pendingSend

	// last time every neighbor was heard of
	neighbors *xsync.Map[envelope.NeighborID, time.Time]

	stop chan struct{}
	wg   sync.WaitGroup
}

// enforce compilation error
var _ transport.Transport = (*Adapter)(nil)

// NewShared creates an adapter using the shared pattern
func NewShared(config *Config, broker Broker, opts ...Option) (*Adapter, error) {
	return newAdapter(config, broker, false, opts...)
}

func newAdapter(config *Config, broker Broker, directed bool, opts ...Option) (*Adapter, error) {
	if config == nil {
		return nil, fmt.Errorf("pubsub: config is required")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if broker == nil {
		return nil, fmt.Errorf("pubsub: broker is required")
	}

	adapter := &Adapter{
		config:    config,
		broker:    broker,
		logger:    log.DefaultLogger,
		clock:     time.Now,
		directed:  directed,
		state:     atomic.NewInt32(int32(Disconnected)),
		neighbors: xsync.NewMap[envelope.NeighborID, time.Time](),
	}

	for _, opt := range opts {
		opt.Apply(adapter)
	}

	adapter.logger = adapter.logger.With("device", config.DeviceID.String())
	return adapter, nil
}

// OnBytesArrived registers the handler invoked on every arrival.
// It must be called before Start.
func (a *Adapter) OnBytesArrived(handler transport.Handler) {
	a.dispatch.Lock()
	a.handler = handler
	a.dispatch.Unlock()
}

// State returns the connection state
func (a *Adapter) State() State {
	return State(a.state.Load())
}

// Ready reports whether the broker connection is up
func (a *Adapter) Ready() bool {
	return a.State() == Connected
}

// Start connects to the broker, with retries, then subscribes.
func (a *Adapter) Start(ctx context.Context) error {
	a.startMu.Lock()
	defer a.startMu.Unlock()

	switch a.State() {
	case Closed:
		return gerrors.ErrTransportClosed
	case Connecting, Connected:
		return gerrors.ErrAlreadyStarted
	}

	// started before then disconnected: the broker reconnects on its own
	if a.connected {
		return gerrors.ErrAlreadyStarted
	}

	a.state.Store(int32(Connecting))
	a.logger.Infof("connecting to broker (namespace=%s)...", a.config.Namespace)

	retrier := retry.NewRetrier(a.config.ConnectRetries, a.config.ConnectBackoff, a.config.MaxConnectBackoff)
	if err := retrier.RunContext(ctx, func(ctx context.Context) error {
		return a.broker.Connect(ctx, a.onConnectionChange)
	}); err != nil {
		a.state.Store(int32(Disconnected))
		a.logger.Warnf("failed to connect to broker: %v", err)
		return gerrors.NewErrTransportUnavailable(err)
	}
	a.connected = true

	if err := a.subscribe(ctx); err != nil {
		a.state.Store(int32(Disconnected))
		a.connected = false
		a.logger.Warnf("failed to subscribe: %v", err)
		return gerrors.NewErrTransportUnavailable(multierr.Append(err, a.broker.Close(ctx)))
	}

	a.state.Store(int32(Connected))
	a.flushPending(ctx)

	if a.directed {
		a.stop = make(chan struct{})
		a.wg.Add(1)
		go a.announceLoop(a.stop)
	}

	a.logger.Info("connected to broker")
	return nil
}

// Broadcast sends payload to every neighbor
func (a *Adapter) Broadcast(ctx context.Context, payload []byte) error {
	if a.State() == Closed {
		return gerrors.ErrTransportClosed
	}

	if !a.directed {
		return a.publish(ctx, a.config.inboxTopic(a.config.DeviceID), payload, true)
	}

	var err error
	for _, neighbor := range a.Reachable() {
		err = multierr.Append(err, a.publish(ctx, a.config.inboxTopic(neighbor), payload, true))
	}
	return err
}

// Reachable returns the neighbors heard of within the neighbor expiry, in a stable order
func (a *Adapter) Reachable() []envelope.NeighborID {
	deadline := a.clock().Add(-a.config.NeighborExpiry)
	reachable := make(map[envelope.NeighborID]struct{})
	a.neighbors.Range(func(id envelope.NeighborID, lastSeen time.Time) {
		if lastSeen.After(deadline) {
			reachable[id] = struct{}{}
		}
	})
	return slices.Sorted(maps.Keys(reachable))
}

// Stop unsubscribes, closes the broker connection and drops the pending sends.
func (a *Adapter) Stop(ctx context.Context) error {
	a.startMu.Lock()
	defer a.startMu.Unlock()

	if State(a.state.Swap(int32(Closed))) == Closed {
		return nil
	}

	if a.stop != nil {
		close(a.stop)
		a.wg.Wait()
		a.stop = nil
	}

	// wait for the in-flight deliveries
	a.dispatch.Lock()
	a.handler = nil
	a.dispatch.Unlock()

	a.pendingMu.Lock()
	dropped := len(a.pending)
	a.pending = nil
	a.pendingMu.Unlock()
	if dropped > 0 {
		a.logger.Warnf("dropped %d pending sends on stop", dropped)
	}

	a.neighbors.Reset()

	if !a.connected {
		return nil
	}

	a.connected = false
	if err := a.broker.Close(ctx); err != nil {
		a.logger.Errorf("failed to close broker connection: %v", err)
		return err
	}

	a.logger.Info("disconnected from broker")
	return nil
}

func (a *Adapter) subscribe(ctx context.Context) error {
	if !a.directed {
		return a.broker.Subscribe(ctx, a.config.inboxFilter(), a.onMessage)
	}

	if err := a.broker.Subscribe(ctx, a.config.announceFilter(), a.onMessage); err != nil {
		return err
	}
	return a.broker.Subscribe(ctx, a.config.inboxTopic(a.config.DeviceID), a.onMessage)
}

func (a *Adapter) onConnectionChange(connected bool) {
	if connected {
		if a.state.CompareAndSwap(int32(Disconnected), int32(Connected)) {
			a.logger.Info("broker connection restored")
			a.flushPending(context.Background())
		}
		return
	}

	if a.state.CompareAndSwap(int32(Connected), int32(Disconnected)) {
		a.logger.Warn("broker connection lost")
	}
}

func (a *Adapter) onMessage(topic Topic, payload []byte) {
	a.dispatch.RLock()
	defer a.dispatch.RUnlock()

	if a.State() == Closed {
		return
	}

	self := a.config.DeviceID
	switch {
	case a.directed && a.config.announceFilter().Matches(topic):
		neighbor := envelope.NeighborID(topic[1])
		if neighbor == self {
			return
		}
		if _, known := a.neighbors.Get(neighbor); !known {
			a.logger.Debugf("neighbor=(%s) announced", neighbor)
		}
		a.neighbors.Set(neighbor, a.clock())
	case a.directed && a.config.inboxTopic(self).Matches(topic):
		// the inbox topic does not carry the sender
		a.deliver("", payload)
	case !a.directed && a.config.inboxFilter().Matches(topic):
		sender := envelope.NeighborID(topic[1])
		if sender == self {
			return
		}
		a.neighbors.Set(sender, a.clock())
		a.deliver(sender, payload)
	default:
		a.logger.Debugf("ignoring message on topic=(%s)", topic)
	}
}

// deliver must be called with the dispatch lock held
func (a *Adapter) deliver(sender envelope.NeighborID, payload []byte) {
	if a.handler == nil {
		return
	}
	a.handler(sender, payload)
}

// publish sends payload on topic. When disconnected the send is queued if
// queue is set and the pending queue has room.
func (a *Adapter) publish(ctx context.Context, topic Topic, payload []byte, queue bool) error {
	switch a.State() {
	case Closed:
		return gerrors.ErrTransportClosed
	case Connected:
		if err := a.broker.Publish(ctx, topic, payload); err != nil {
			return gerrors.NewErrTransportUnavailable(err)
		}
		return nil
	}

	if !queue || a.config.DisablePendingQueue {
		return gerrors.ErrNotConnected
	}

	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	if len(a.pending) >= a.config.PendingQueueSize {
		return multierr.Append(gerrors.ErrNotConnected, gerrors.ErrQueueFull)
	}
	a.pending = append(a.pending, pendingSend{topic: topic, payload: payload})
	return nil
}

func (a *Adapter) flushPending(ctx context.Context) {
	a.pendingMu.Lock()
	pending := a.pending
	a.pending = nil
	a.pendingMu.Unlock()

	for _, send := range pending {
		if err := a.publish(ctx, send.topic, send.payload, true); err != nil {
			a.logger.Warnf("failed to flush pending send on topic=(%s): %v", send.topic, err)
		}
	}
}

func (a *Adapter) announceLoop(stop <-chan struct{}) {
	defer a.wg.Done()

	tick := ticker.New(a.config.AnnounceInterval)
	tick.Start()
	defer tick.Stop()

	a.announce()
	for {
		select {
		case <-tick.Ticks:
			a.announce()
			a.expireNeighbors()
		case <-stop:
			return
		}
	}
}

// announce publishes an empty heartbeat on the device topic. Announcements
// are never queued: a stale one is worthless.
func (a *Adapter) announce() {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.AnnounceInterval)
	defer cancel()
	if err := a.publish(ctx, a.config.announceTopic(), nil, false); err != nil {
		a.logger.Debugf("failed to announce presence: %v", err)
	}
}

func (a *Adapter) expireNeighbors() {
	deadline := a.clock().Add(-a.config.NeighborExpiry)
	expired := a.neighbors.DeleteFunc(func(_ envelope.NeighborID, lastSeen time.Time) bool {
		return !lastSeen.After(deadline)
	})
	for _, neighbor := range expired {
		a.logger.Debugf("neighbor=(%s) expired", neighbor)
	}
}
