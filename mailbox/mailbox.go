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

// Package mailbox lets a device exchange per-round envelopes with its neighbors.
//
// A round hands its outbound envelope to DeliverOutbound and reads what the
// neighbors sent with CurrentInbound. Encoding, sending, receiving and
// decoding happen in background loops, so a round never waits on the network.
// Every neighbor envelope is retained for a time window and the latest
// arrival from a neighbor replaces the previous one.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gods "github.com/Workiva/go-datastructures/queue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/fieldmesh/mailbox/codec"
	"github.com/fieldmesh/mailbox/envelope"
	gerrors "github.com/fieldmesh/mailbox/errors"
	imetric "github.com/fieldmesh/mailbox/internal/metric"
	"github.com/fieldmesh/mailbox/internal/validation"
	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/store"
	"github.com/fieldmesh/mailbox/transport"
)

const (
	// DefaultRetentionWindow is how long a neighbor envelope is retained
	DefaultRetentionWindow = 5 * time.Second
	// DefaultInboundQueueSize is the number of arrivals waiting to be decoded
	DefaultInboundQueueSize = 256
	// DefaultSendTimeout bounds every hand over to the transport
	DefaultSendTimeout = 5 * time.Second
)

// arrival is a frame handed over by the transport
type arrival struct {
	sender  envelope.NeighborID
	payload []byte
}

// Mailbox exchanges envelopes between the local device and its neighbors
type Mailbox struct {
	localID   envelope.NeighborID
	transport transport.Transport
	// set when the transport can address a single neighbor
	directed transport.Directed

	codec         *codec.Codec
	store         *store.Store
	logger        log.Logger
	clock         func() time.Time
	retention     time.Duration
	queueSize     int
	sendTimeout   time.Duration
	meterProvider metric.MeterProvider
	metrics       *imetric.MailboxMetric
	registration  metric.Registration

	inbound *gods.RingBuffer
	// signalled when arrivals are queued
	inboundCh chan struct{}

	// latest outbound envelope not sent yet
	outboundMu sync.Mutex
	outbound   *envelope.Outbound
	outboundCh chan struct{}

	arrivalsMu sync.RWMutex
	arrivals   chan envelope.NeighborID

	startMu sync.Mutex
	running bool
	closed  *atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New creates a mailbox for the local device over the given transport.
// Configuration errors are reported here rather than per message.
func New(localID envelope.NeighborID, tr transport.Transport, opts ...Option) (*Mailbox, error) {
	mailbox := &Mailbox{
		localID:       localID,
		transport:     tr,
		logger:        log.DefaultLogger,
		clock:         time.Now,
		retention:     DefaultRetentionWindow,
		queueSize:     DefaultInboundQueueSize,
		sendTimeout:   DefaultSendTimeout,
		meterProvider: otel.GetMeterProvider(),
		outboundCh:    make(chan struct{}, 1),
		inboundCh:     make(chan struct{}, 1),
		closed:        atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(mailbox)
	}

	if localID.IsZero() {
		return nil, gerrors.NewErrInvalidNeighborID(localID)
	}

	if err := validation.New(validation.FailFast()).
		AddAssertion(tr != nil, "the [Transport] is required").
		AddAssertion(mailbox.queueSize > 0, "the [InboundQueueSize] must be greater than zero").
		AddValidator(validation.NewPositiveDurationValidator("SendTimeout", mailbox.sendTimeout)).
		AddAssertion(mailbox.clock != nil, "the [Clock] is required").
		AddAssertion(mailbox.meterProvider != nil, "the [MeterProvider] is required").
		Validate(); err != nil {
		return nil, err
	}

	if mailbox.codec == nil {
		defaultCodec, err := codec.New(codec.FormatProtobuf)
		if err != nil {
			return nil, err
		}
		mailbox.codec = defaultCodec
	}

	retained, err := store.New(mailbox.retention)
	if err != nil {
		return nil, err
	}
	mailbox.store = retained

	metrics, err := imetric.NewMailboxMetric(mailbox.meterProvider, localID.String())
	if err != nil {
		return nil, err
	}
	mailbox.metrics = metrics

	if directed, ok := tr.(transport.Directed); ok {
		mailbox.directed = directed
	}

	mailbox.logger = mailbox.logger.With("device", localID.String())
	mailbox.inbound = gods.NewRingBuffer(uint64(mailbox.queueSize))
	mailbox.arrivals = make(chan envelope.NeighborID, mailbox.queueSize)
	tr.OnBytesArrived(mailbox.onBytesArrived)
	return mailbox, nil
}

// LocalID returns the id of the local device
func (m *Mailbox) LocalID() envelope.NeighborID {
	return m.localID
}

// Start starts the background loops, once, then the transport. A transport
// failure is returned wrapped in ErrTransportUnavailable; the mailbox stays
// usable with no neighbors and Start can be called again.
func (m *Mailbox) Start(ctx context.Context) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.closed.Load() {
		return gerrors.ErrTransportClosed
	}

	if !m.running {
		if err := m.startLoops(); err != nil {
			return err
		}
	}

	if err := m.transport.Start(ctx); err != nil {
		if errors.Is(err, gerrors.ErrAlreadyStarted) {
			return err
		}

		m.logger.Warnf("transport unavailable: %v", err)
		if !errors.Is(err, gerrors.ErrTransportUnavailable) {
			err = gerrors.NewErrTransportUnavailable(err)
		}
		return err
	}

	m.logger.Info("mailbox started")
	return nil
}

// DeliverOutbound hands the envelope of the current round to the send loop
// and returns immediately. Only the latest envelope not sent yet is kept.
// It fails with ErrTransportClosed after Close.
func (m *Mailbox) DeliverOutbound(outbound *envelope.Outbound) error {
	if m.closed.Load() {
		return gerrors.ErrTransportClosed
	}

	if outbound == nil {
		return nil
	}

	m.outboundMu.Lock()
	if m.outbound != nil {
		m.logger.Debug("replacing unsent outbound envelope")
	}
	m.outbound = outbound
	m.outboundMu.Unlock()

	select {
	case m.outboundCh <- struct{}{}:
	default:
	}
	return nil
}

// DeliverableReceived stores an envelope under the sender it declares.
// Envelopes declaring the local device, or no sender, are ignored.
func (m *Mailbox) DeliverableReceived(msg envelope.Message) {
	if m.closed.Load() || msg.SenderID.IsZero() || msg.SenderID == m.localID {
		return
	}

	m.store.Put(msg.SenderID, msg, m.clock())
	m.metrics.RecordReceived(context.Background())
	m.notify(msg.SenderID)
}

// CurrentInbound returns what the neighbors sent within the retention window
func (m *Mailbox) CurrentInbound() *Inbound {
	return &Inbound{
		snapshot: m.store.Snapshot(m.clock()),
		codec:    m.codec,
		logger:   m.logger,
		metrics:  m.metrics,
	}
}

// Arrivals notifies the id of every neighbor whose envelope got stored. It is
// meant to trigger rounds on arrival: notifications are dropped while the
// channel is full. The channel is closed by Close.
func (m *Mailbox) Arrivals() <-chan envelope.NeighborID {
	return m.arrivals
}

// Ready reports whether the transport can currently move envelopes
func (m *Mailbox) Ready() bool {
	return !m.closed.Load() && m.transport.Ready()
}

// Close stops the transport and the background loops, then releases the
// retained envelopes. Calling Close more than once is a no-op.
func (m *Mailbox) Close(ctx context.Context) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.closed.Swap(true) {
		return nil
	}

	err := m.transport.Stop(ctx)
	m.inbound.Dispose()

	if m.running {
		m.cancel()
		err = multierr.Append(err, m.group.Wait())
		m.running = false
	}

	if m.registration != nil {
		err = multierr.Append(err, m.registration.Unregister())
	}

	m.outboundMu.Lock()
	m.outbound = nil
	m.outboundMu.Unlock()

	m.store.Clear()

	m.arrivalsMu.Lock()
	close(m.arrivals)
	m.arrivalsMu.Unlock()

	if err != nil {
		m.logger.Errorf("mailbox closed with errors: %v", err)
		return err
	}

	m.logger.Info("mailbox closed")
	return nil
}

func (m *Mailbox) startLoops() error {
	registration, err := m.metrics.ObserveNeighbors(m.meterProvider, m.store.Len)
	if err != nil {
		return fmt.Errorf("failed to observe neighbors: %w", err)
	}
	m.registration = registration

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return m.writeLoop(ctx)
	})
	group.Go(func() error {
		return m.sendLoop(ctx)
	})

	m.cancel = cancel
	m.group = group
	m.running = true
	return nil
}

// onBytesArrived runs on the transport goroutines and never blocks
func (m *Mailbox) onBytesArrived(sender envelope.NeighborID, payload []byte) {
	if m.closed.Load() || (sender == m.localID && !sender.IsZero()) {
		return
	}

	ok, err := m.inbound.Offer(arrival{sender: sender, payload: payload})
	if err != nil {
		return
	}

	if !ok {
		m.metrics.RecordDropped(context.Background())
		m.logger.Debugf("inbound queue full, dropping envelope from neighbor=(%s)", sender)
		return
	}

	select {
	case m.inboundCh <- struct{}{}:
	default:
	}
}

// writeLoop decodes the queued arrivals into the store. It parks until
// onBytesArrived signals and drains the queue before parking again.
func (m *Mailbox) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.inboundCh:
			// Get spins while the ring buffer is empty
			for m.inbound.Len() > 0 {
				item, err := m.inbound.Get()
				if err != nil {
					return nil
				}
				m.write(item)
			}
		}
	}
}

func (m *Mailbox) write(item any) {
	frame, ok := item.(arrival)
	if !ok {
		return
	}

	msg, err := m.codec.Decode(frame.payload)
	if err != nil {
		m.metrics.RecordMalformed(context.Background())
		m.logger.Warnf("dropping envelope from neighbor=(%s): %v", frame.sender, err)
		return
	}

	m.DeliverableReceived(msg)
}

func (m *Mailbox) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.outboundCh:
			m.outboundMu.Lock()
			outbound := m.outbound
			m.outbound = nil
			m.outboundMu.Unlock()

			if outbound != nil {
				m.send(ctx, outbound)
			}
		}
	}
}

func (m *Mailbox) send(ctx context.Context, outbound *envelope.Outbound) {
	if m.directed == nil || !outbound.HasOverrides() {
		payload, ok := m.encode(outbound.Defaults())
		if !ok {
			return
		}
		m.handOver(ctx, "", func(ctx context.Context) error {
			return m.transport.Broadcast(ctx, payload)
		})
		return
	}

	for _, neighbor := range m.directed.Reachable() {
		payload, ok := m.encode(outbound.PrepareFor(neighbor))
		if !ok {
			continue
		}
		m.handOver(ctx, neighbor, func(ctx context.Context) error {
			return m.directed.SendTo(ctx, neighbor, payload)
		})
	}
}

// encode reports false when nothing can be sent. Values that cannot be
// encoded are left out of the envelope.
func (m *Mailbox) encode(values map[envelope.Path]any) ([]byte, bool) {
	msg, err := m.codec.EncodeValues(m.localID, values)
	if err != nil {
		m.metrics.RecordSendFailure(context.Background())
		m.logger.Errorf("failed to encode outbound values: %v", err)
	}

	payload, err := m.codec.Encode(msg)
	if err != nil {
		m.metrics.RecordSendFailure(context.Background())
		m.logger.Errorf("failed to encode outbound envelope: %v", err)
		return nil, false
	}
	return payload, true
}

func (m *Mailbox) handOver(ctx context.Context, target envelope.NeighborID, send func(context.Context) error) {
	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	if err := send(sendCtx); err != nil {
		m.metrics.RecordSendFailure(ctx)
		if target.IsZero() {
			m.logger.Debugf("failed to broadcast envelope: %v", err)
			return
		}
		m.logger.Debugf("failed to send envelope to neighbor=(%s): %v", target, err)
		return
	}
	m.metrics.RecordSent(ctx)
}

func (m *Mailbox) notify(sender envelope.NeighborID) {
	m.arrivalsMu.RLock()
	defer m.arrivalsMu.RUnlock()

	if m.closed.Load() {
		return
	}

	select {
	case m.arrivals <- sender:
	default:
	}
}
