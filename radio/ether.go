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
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

type station struct {
	radio   *SimulatedRadio
	service Service
	read    ReadFunc
}

type link struct {
	a, b string
}

func newLink(a, b string) link {
	if b < a {
		a, b = b, a
	}
	return link{a: a, b: b}
}

// Ether is a simulated medium shared by SimulatedRadio instances.
// Every radio is in range of every other one unless the link between them is cut.
type Ether struct {
	mu       sync.RWMutex
	stations map[string]*station
	cut      map[link]struct{}
}

// NewEther creates an empty Ether
func NewEther() *Ether {
	return &Ether{
		stations: make(map[string]*station),
		cut:      make(map[link]struct{}),
	}
}

// Radio returns an enabled radio at address
func (e *Ether) Radio(address string) *SimulatedRadio {
	return &SimulatedRadio{
		ether:   e,
		address: address,
		enabled: atomic.NewBool(true),
	}
}

// SetInRange cuts or restores the link between the radios at a and b
func (e *Ether) SetInRange(a, b string, inRange bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if inRange {
		delete(e.cut, newLink(a, b))
		return
	}
	e.cut[newLink(a, b)] = struct{}{}
}

// reachable must be called with the lock held
func (e *Ether) reachable(from, to string) (*station, bool) {
	if _, cut := e.cut[newLink(from, to)]; cut {
		return nil, false
	}
	target, ok := e.stations[to]
	if !ok || !target.radio.Enabled() {
		return nil, false
	}
	return target, true
}

// SimulatedRadio is a Radio on an Ether
type SimulatedRadio struct {
	ether   *Ether
	address string
	enabled *atomic.Bool
}

// enforce compilation error
var _ Radio = (*SimulatedRadio)(nil)

// Address returns the medium address of the radio
func (r *SimulatedRadio) Address() string {
	return r.address
}

// SetEnabled turns the radio on or off. A radio turned off stops advertising.
func (r *SimulatedRadio) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
	if !enabled {
		r.withdraw()
	}
}

// Enabled implements Radio
func (r *SimulatedRadio) Enabled() bool {
	return r.enabled.Load()
}

// Serve implements Radio
func (r *SimulatedRadio) Serve(ctx context.Context, service Service, read ReadFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.Enabled() {
		return ErrRadioDisabled
	}

	r.ether.mu.Lock()
	r.ether.stations[r.address] = &station{radio: r, service: service, read: read}
	r.ether.mu.Unlock()
	return nil
}

// Scan implements Radio
func (r *SimulatedRadio) Scan(ctx context.Context, service Service) ([]Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.Enabled() {
		return nil, ErrRadioDisabled
	}

	r.ether.mu.RLock()
	defer r.ether.mu.RUnlock()

	var peers []Peer
	for address := range r.ether.stations {
		if address == r.address {
			continue
		}
		target, ok := r.ether.reachable(r.address, address)
		if !ok || target.service.ID != service.ID {
			continue
		}
		peers = append(peers, Peer{Address: address, LocalName: target.service.LocalName})
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Address < peers[j].Address })
	return peers, nil
}

// Connect implements Radio
func (r *SimulatedRadio) Connect(ctx context.Context, peer Peer, service Service) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.Enabled() {
		return nil, ErrRadioDisabled
	}

	r.ether.mu.RLock()
	_, ok := r.ether.reachable(r.address, peer.Address)
	r.ether.mu.RUnlock()
	if !ok {
		return nil, ErrPeerUnreachable
	}

	return &simulatedConnection{
		radio:          r,
		address:        peer.Address,
		characteristic: service.Characteristic,
		open:           atomic.NewBool(true),
	}, nil
}

// Close implements Radio
func (r *SimulatedRadio) Close() error {
	r.withdraw()
	return nil
}

func (r *SimulatedRadio) withdraw() {
	r.ether.mu.Lock()
	if current, ok := r.ether.stations[r.address]; ok && current.radio == r {
		delete(r.ether.stations, r.address)
	}
	r.ether.mu.Unlock()
}

type simulatedConnection struct {
	radio          *SimulatedRadio
	address        string
	characteristic uuid.UUID
	open           *atomic.Bool
}

func (c *simulatedConnection) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.open.Load() || !c.radio.Enabled() {
		return nil, ErrPeerUnreachable
	}

	c.radio.ether.mu.RLock()
	target, ok := c.radio.ether.reachable(c.radio.address, c.address)
	c.radio.ether.mu.RUnlock()
	if !ok || target.service.Characteristic != c.characteristic {
		return nil, ErrPeerUnreachable
	}
	return slices.Clone(target.read()), nil
}

func (c *simulatedConnection) Close() error {
	c.open.Store(false)
	return nil
}
