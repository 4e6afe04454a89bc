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

// Package mdns emulates a short-range radio on a local network. Presence is
// advertised and scanned with multicast DNS service discovery, and the
// characteristic is read over TCP from the address found in the advertisement.
package mdns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/fieldmesh/mailbox/internal/tcp"
	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/radio"
)

const (
	serviceKey        = "service"
	characteristicKey = "characteristic"
)

// Radio is a radio.Radio over mDNS and TCP
type Radio struct {
	config *Config
	logger log.Logger

	mu         sync.Mutex
	server     *zeroconf.Server
	endpoint   *characteristicServer
	closed     *atomic.Bool
	interfaces func() ([]net.Interface, error)
}

// enforce compilation error
var _ radio.Radio = (*Radio)(nil)

// NewRadio creates an mDNS radio
func NewRadio(config *Config, opts ...Option) (*Radio, error) {
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r := &Radio{
		config:     config,
		logger:     log.DefaultLogger,
		closed:     atomic.NewBool(false),
		interfaces: net.Interfaces,
	}

	for _, opt := range opts {
		opt.Apply(r)
	}
	return r, nil
}

// Enabled reports whether an interface able to multicast is up
func (r *Radio) Enabled() bool {
	if r.closed.Load() {
		return false
	}

	interfaces, err := r.interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagMulticast != 0 {
			return true
		}
	}
	return false
}

// Serve starts the characteristic server then advertises service
func (r *Radio) Serve(ctx context.Context, service radio.Service, read radio.ReadFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return radio.ErrRadioDisabled
	}

	if r.server != nil {
		return nil
	}

	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", r.config.BindAddress)
	if err != nil {
		return err
	}

	endpoint := serveCharacteristic(listener, service.Characteristic, read)

	ip, err := tcp.GetBindIP(r.config.BindAddress)
	if err != nil {
		return multierr.Append(err, endpoint.close())
	}

	text := []string{
		fmt.Sprintf("%s=%s", serviceKey, service.ID),
		fmt.Sprintf("%s=%s", characteristicKey, service.Characteristic),
	}

	server, err := zeroconf.RegisterProxy(service.LocalName, r.config.Service, r.config.Domain,
		endpoint.port(), service.LocalName, []string{ip}, text, nil)
	if err != nil {
		return multierr.Append(err, endpoint.close())
	}

	r.server = server
	r.endpoint = endpoint
	r.logger.Debugf("advertising %s on %s", service.LocalName, net.JoinHostPort(ip, strconv.Itoa(endpoint.port())))
	return nil
}

// Scan browses the network for service
func (r *Radio) Scan(ctx context.Context, service radio.Service) ([]radio.Peer, error) {
	if r.closed.Load() {
		return nil, radio.ErrRadioDisabled
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}

	browseCtx, cancel := context.WithTimeout(ctx, r.config.BrowseTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	if err := resolver.Browse(browseCtx, r.config.Service, r.config.Domain, entries); err != nil {
		return nil, err
	}

	var peers []radio.Peer
	for entry := range entries {
		peer, ok := toPeer(entry, service)
		if !ok {
			continue
		}
		peers = append(peers, peer)
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}
	return peers, nil
}

// Connect dials the characteristic server of peer
func (r *Radio) Connect(ctx context.Context, peer radio.Peer, service radio.Service) (radio.Connection, error) {
	if r.closed.Load() {
		return nil, radio.ErrRadioDisabled
	}
	return dialCharacteristic(ctx, peer.Address, service.Characteristic, r.config.MaxPayloadSize)
}

// Close stops advertising and the characteristic server. The radio cannot be used afterwards.
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Swap(true) {
		return nil
	}

	if r.server != nil {
		r.server.Shutdown()
		r.server = nil
	}

	if r.endpoint != nil {
		err := r.endpoint.close()
		r.endpoint = nil
		return err
	}
	return nil
}

// toPeer keeps the entries advertising the expected service and characteristic
func toPeer(entry *zeroconf.ServiceEntry, service radio.Service) (radio.Peer, bool) {
	if len(entry.AddrIPv4) == 0 && len(entry.AddrIPv6) == 0 {
		return radio.Peer{}, false
	}

	text := make(map[string]string, len(entry.Text))
	for _, record := range entry.Text {
		key, value, found := strings.Cut(record, "=")
		if found {
			text[key] = value
		}
	}

	if !sameUUID(text[serviceKey], service.ID) || !sameUUID(text[characteristicKey], service.Characteristic) {
		return radio.Peer{}, false
	}

	var ip net.IP
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0]
	} else {
		ip = entry.AddrIPv6[0]
	}

	return radio.Peer{
		Address:   net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port)),
		LocalName: entry.Instance,
	}, true
}

func sameUUID(raw string, expected uuid.UUID) bool {
	parsed, err := uuid.Parse(raw)
	return err == nil && parsed == expected
}
