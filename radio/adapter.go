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

package radio

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/zeebo/xxh3"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/fieldmesh/mailbox/envelope"
	gerrors "github.com/fieldmesh/mailbox/errors"
	"github.com/fieldmesh/mailbox/internal/ticker"
	"github.com/fieldmesh/mailbox/internal/xsync"
	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/transport"
)

// peer is a connected device. hash and delivered are only touched by the read loop.
type peer struct {
	id         envelope.NeighborID
	connection Connection
	hash       uint64
	delivered  time.Time
}

// Adapter is a transport over a Radio.
//
// Broadcast replaces the served payload: a peer reading the characteristic
// gets the latest value and older unread ones are lost. A disabled radio
// leaves the adapter running with Ready false until the radio comes back.
type Adapter struct {
	config  *Config
	radio   Radio
	service Service
	logger  log.Logger
	clock   func() time.Time

	latestMu sync.RWMutex
	latest   []byte

	handler  transport.Handler
	dispatch sync.RWMutex

	startMu sync.Mutex
	started *atomic.Bool
	closed  *atomic.Bool
	serving *atomic.Bool

	// connected peers keyed by medium address
	peers *xsync.Map[string, *peer]

	cancel context.CancelFunc
	group  *errgroup.Group
}

// enforce compilation error
var _ transport.Transport = (*Adapter)(nil)

// NewAdapter creates a radio adapter
func NewAdapter(config *Config, radio Radio, opts ...Option) (*Adapter, error) {
	if config == nil {
		return nil, fmt.Errorf("radio: config is required")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if radio == nil {
		return nil, fmt.Errorf("radio: radio is required")
	}

	adapter := &Adapter{
		config:  config,
		radio:   radio,
		service: config.service(),
		logger:  log.DefaultLogger,
		clock:   time.Now,
		started: atomic.NewBool(false),
		closed:  atomic.NewBool(false),
		serving: atomic.NewBool(false),
		peers:   xsync.NewMap[string, *peer](),
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

// Start starts serving and the scan and read loops. A disabled radio is not
// an error: the adapter keeps polling until the radio is enabled.
func (a *Adapter) Start(ctx context.Context) error {
	a.startMu.Lock()
	defer a.startMu.Unlock()

	if a.closed.Load() {
		return gerrors.ErrTransportClosed
	}

	if a.started.Load() {
		return gerrors.ErrAlreadyStarted
	}

	if err := ctx.Err(); err != nil {
		return gerrors.NewErrTransportUnavailable(err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.ensureServing(runCtx)

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return a.loop(groupCtx, a.config.ScanInterval, a.scan)
	})
	group.Go(func() error {
		return a.loop(groupCtx, a.config.ReadInterval, a.readPeers)
	})

	a.cancel = cancel
	a.group = group
	a.started.Store(true)
	a.logger.Infof("radio adapter started (name=%s)", a.service.LocalName)
	return nil
}

// Broadcast replaces the payload served to the peers
func (a *Adapter) Broadcast(_ context.Context, payload []byte) error {
	if a.closed.Load() {
		return gerrors.ErrTransportClosed
	}

	a.latestMu.Lock()
	a.latest = slices.Clone(payload)
	a.latestMu.Unlock()
	return nil
}

// Ready reports whether the radio is enabled and the device is advertising
func (a *Adapter) Ready() bool {
	return !a.closed.Load() && a.radio.Enabled() && a.serving.Load()
}

// Connected returns the ids of the connected peers
func (a *Adapter) Connected() mapset.Set[envelope.NeighborID] {
	connected := mapset.NewSet[envelope.NeighborID]()
	a.peers.Range(func(_ string, p *peer) {
		connected.Add(p.id)
	})
	return connected
}

// Stop stops the loops, closes the peer connections and the radio
func (a *Adapter) Stop(context.Context) error {
	a.startMu.Lock()
	defer a.startMu.Unlock()

	if a.closed.Swap(true) {
		return nil
	}

	var err error
	if a.started.Load() {
		a.cancel()
		err = multierr.Append(err, a.group.Wait())
	}

	a.dispatch.Lock()
	a.handler = nil
	a.dispatch.Unlock()

	a.dropPeers()
	a.serving.Store(false)
	err = multierr.Append(err, a.radio.Close())

	a.latestMu.Lock()
	a.latest = nil
	a.latestMu.Unlock()

	a.logger.Info("radio adapter stopped")
	return err
}

func (a *Adapter) loop(ctx context.Context, interval time.Duration, work func(context.Context)) error {
	tick := ticker.New(interval)
	tick.Start()
	defer tick.Stop()

	for {
		select {
		case <-tick.Ticks:
			work(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// read answers the characteristic reads of the peers
func (a *Adapter) read() []byte {
	a.latestMu.RLock()
	defer a.latestMu.RUnlock()
	return slices.Clone(a.latest)
}

func (a *Adapter) ensureServing(ctx context.Context) bool {
	if !a.radio.Enabled() {
		if a.serving.Swap(false) {
			a.logger.Warn("radio disabled, advertising stopped")
		}
		return false
	}

	if a.serving.Load() {
		return true
	}

	if err := a.radio.Serve(ctx, a.service, a.read); err != nil {
		a.logger.Warnf("failed to advertise: %v", err)
		return false
	}

	a.serving.Store(true)
	a.logger.Info("advertising")
	return true
}

func (a *Adapter) scan(ctx context.Context) {
	if !a.ensureServing(ctx) {
		a.dropPeers()
		return
	}

	scanCtx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
	found, err := a.radio.Scan(scanCtx, a.service)
	cancel()
	if err != nil {
		a.logger.Debugf("scan failed: %v", err)
		return
	}

	for _, candidate := range found {
		id, ok := ParseLocalName(a.config.NamePrefix, candidate.LocalName)
		if !ok || id == a.config.DeviceID {
			continue
		}

		if _, connected := a.peers.Get(candidate.Address); connected {
			continue
		}

		connectCtx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
		connection, err := a.radio.Connect(connectCtx, candidate, a.service)
		cancel()
		if err != nil {
			a.logger.Debugf("failed to connect to neighbor=(%s): %v", id, err)
			continue
		}

		a.peers.Set(candidate.Address, &peer{id: id, connection: connection})
		a.logger.Debugf("connected to neighbor=(%s)", id)
	}
}

func (a *Adapter) readPeers(ctx context.Context) {
	for _, address := range a.peers.Keys() {
		if ctx.Err() != nil {
			return
		}

		p, ok := a.peers.Get(address)
		if !ok {
			continue
		}

		readCtx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
		payload, err := p.connection.Read(readCtx)
		cancel()
		if err != nil {
			a.logger.Debugf("lost neighbor=(%s): %v", p.id, err)
			a.removePeer(address)
			continue
		}

		// nothing broadcast yet
		if len(payload) == 0 {
			continue
		}

		now := a.clock()
		hash := xxh3.Hash(payload)
		if hash == p.hash && now.Sub(p.delivered) < a.config.RefreshInterval {
			continue
		}

		p.hash = hash
		p.delivered = now
		a.deliver(p.id, payload)
	}
}

func (a *Adapter) deliver(sender envelope.NeighborID, payload []byte) {
	a.dispatch.RLock()
	defer a.dispatch.RUnlock()
	if a.handler == nil || a.closed.Load() {
		return
	}
	a.handler(sender, payload)
}

func (a *Adapter) removePeer(address string) {
	p, ok := a.peers.Get(address)
	// the scan and read loops may both remove a peer
	if !ok || !a.peers.Delete(address) {
		return
	}
	if err := p.connection.Close(); err != nil {
		a.logger.Debugf("failed to close connection to neighbor=(%s): %v", p.id, err)
	}
}

func (a *Adapter) dropPeers() {
	for _, address := range a.peers.Keys() {
		a.removePeer(address)
	}
}
