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

// Package radio moves mailbox envelopes over a short-range radio exposing
// GATT-like roles. A device serves its latest envelope as a readable
// characteristic and periodically scans for, connects to and reads the
// devices around it.
package radio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldmesh/mailbox/envelope"
)

var (
	// ServiceUUID identifies the mailbox service advertised by every device
	ServiceUUID = uuid.MustParse("0000AAAA-0000-1000-8000-00805F9B34FB")
	// CharacteristicUUID identifies the characteristic holding the latest envelope
	CharacteristicUUID = uuid.MustParse("0000BBBB-0000-1000-8000-00805F9B34FB")

	// ErrRadioDisabled is returned by a Radio that is turned off or not permitted
	ErrRadioDisabled = errors.New("radio is disabled")
	// ErrPeerUnreachable is returned when a peer cannot be connected or read
	ErrPeerUnreachable = errors.New("peer is unreachable")
)

// DefaultNamePrefix prefixes the local name of every device
const DefaultNamePrefix = "collektive"

// Service is what a device advertises
type Service struct {
	ID             uuid.UUID
	Characteristic uuid.UUID
	LocalName      string
}

// Peer is a device found by a scan
type Peer struct {
	// Address is the medium address used to connect
	Address string
	// LocalName is the advertised local name
	LocalName string
}

// ReadFunc returns the current value of the served characteristic
type ReadFunc func() []byte

// Connection is an open link to a peer
type Connection interface {
	// Read reads the characteristic of the peer
	Read(ctx context.Context) ([]byte, error)
	// Close closes the link
	Close() error
}

// Radio is a short-range radio medium.
type Radio interface {
	// Enabled reports whether the radio is on and usable
	Enabled() bool
	// Serve advertises service and answers characteristic reads with read.
	// It returns once advertising started.
	Serve(ctx context.Context, service Service, read ReadFunc) error
	// Scan returns the peers currently advertising service
	Scan(ctx context.Context, service Service) ([]Peer, error)
	// Connect opens a link to peer
	Connect(ctx context.Context, peer Peer, service Service) (Connection, error)
	// Close stops advertising and releases the radio
	Close() error
}

// LocalName returns the local name advertised by the device id
func LocalName(prefix string, id envelope.NeighborID) string {
	return fmt.Sprintf("%s-%s", prefix, id)
}

// ParseLocalName returns the device id advertised in name
func ParseLocalName(prefix, name string) (envelope.NeighborID, bool) {
	id, found := strings.CutPrefix(name, prefix+"-")
	if !found || id == "" {
		return "", false
	}
	return envelope.NeighborID(id), true
}
