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

	"github.com/fieldmesh/mailbox/envelope"
	"github.com/fieldmesh/mailbox/transport"
)

// DirectedAdapter is a transport over a publish/subscribe broker using the
// directed pattern. Every device announces itself on <namespace>/<id>, learns
// its neighbors from <namespace>/+ and receives on <namespace>/<id>/neighbors.
type DirectedAdapter struct {
	*Adapter
}

// enforce compilation error
var _ transport.Directed = (*DirectedAdapter)(nil)

// NewDirected creates an adapter using the directed pattern
func NewDirected(config *Config, broker Broker, opts ...Option) (*DirectedAdapter, error) {
	adapter, err := newAdapter(config, broker, true, opts...)
	if err != nil {
		return nil, err
	}
	return &DirectedAdapter{Adapter: adapter}, nil
}

// SendTo publishes payload on the inbox of target.
// Sending to the local device is a no-op.
func (d *DirectedAdapter) SendTo(ctx context.Context, target envelope.NeighborID, payload []byte) error {
	if target == d.config.DeviceID {
		return nil
	}
	return d.publish(ctx, d.config.inboxTopic(target), payload, true)
}
