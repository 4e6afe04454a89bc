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

// Package transport defines the contract between the mailbox and the media
// that move envelope bytes between devices.
package transport

import (
	"context"

	"github.com/fieldmesh/mailbox/envelope"
)

// Handler receives the bytes that arrived from a neighbor. sender is the
// device the medium attributes the bytes to.
//
// A Handler must return quickly: it runs on the transport receive path.
type Handler func(sender envelope.NeighborID, payload []byte)

// Transport moves opaque bytes between the local device and its neighbors.
// Adapters never deliver bytes the local device sent itself.
type Transport interface {
	// Start connects to the medium and begins receiving. A failed Start
	// returns an error wrapping ErrTransportUnavailable and can be retried.
	Start(ctx context.Context) error
	// Broadcast sends payload to every neighbor reachable on the medium.
	// Delivery is best effort. It fails with ErrTransportClosed after Stop.
	Broadcast(ctx context.Context, payload []byte) error
	// OnBytesArrived registers the handler invoked on every arrival.
	// It must be called before Start.
	OnBytesArrived(handler Handler)
	// Ready reports whether the medium is currently usable
	Ready() bool
	// Stop releases every resource of the transport. The handler is not
	// invoked once Stop returns.
	Stop(ctx context.Context) error
}

// Directed is implemented by transports able to address a single neighbor,
// which lets the sender tailor the envelope to its receiver.
type Directed interface {
	Transport
	// Reachable returns the neighbors currently known to be reachable
	Reachable() []envelope.NeighborID
	// SendTo sends payload to target only.
	SendTo(ctx context.Context, target envelope.NeighborID, payload []byte) error
}
