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

package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/fieldmesh/mailbox/envelope"
	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/pubsub"
	"github.com/fieldmesh/mailbox/radio"
	"github.com/fieldmesh/mailbox/transport"
)

func newDevice(t *testing.T, id envelope.NeighborID, tr transport.Transport) *Mailbox {
	t.Helper()
	mailbox, err := New(id, tr,
		WithLogger(log.DiscardLogger),
		WithMeterProvider(noop.NewMeterProvider()))
	require.NoError(t, err)
	require.NoError(t, mailbox.Start(context.Background()))
	return mailbox
}

func closeAll(t *testing.T, mailboxes ...*Mailbox) {
	t.Helper()
	for _, mailbox := range mailboxes {
		require.NoError(t, mailbox.Close(context.Background()))
	}
}

func TestMailboxOverPubSub(t *testing.T) {
	t.Run("With shared topic", func(t *testing.T) {
		bus := pubsub.NewBus()
		ids := []envelope.NeighborID{"1", "2", "3"}
		devices := make(map[envelope.NeighborID]*Mailbox, len(ids))
		for _, id := range ids {
			adapter, err := pubsub.NewShared(pubsub.NewConfig(id), bus.Broker(), pubsub.WithLogger(log.DiscardLogger))
			require.NoError(t, err)
			devices[id] = newDevice(t, id, adapter)
		}

		for _, id := range ids {
			require.NoError(t, devices[id].DeliverOutbound(envelope.NewOutbound().Set(gradient, "from-"+id.String())))
		}

		for _, id := range ids {
			mailbox := devices[id]
			require.Eventually(t, func() bool {
				return mailbox.CurrentInbound().Len() == 2
			}, 2*time.Second, 10*time.Millisecond)

			values, err := DataAt[string](mailbox.CurrentInbound(), gradient)
			require.NoError(t, err)
			assert.NotContains(t, values, id)
			for neighbor, value := range values {
				assert.Equal(t, "from-"+neighbor.String(), value)
			}
		}

		closeAll(t, devices["1"], devices["2"], devices["3"])
	})
	t.Run("With directed topics", func(t *testing.T) {
		bus := pubsub.NewBus()
		ids := []envelope.NeighborID{"1", "2", "3"}
		adapters := make(map[envelope.NeighborID]*pubsub.DirectedAdapter, len(ids))
		devices := make(map[envelope.NeighborID]*Mailbox, len(ids))
		for _, id := range ids {
			config := pubsub.NewConfig(id)
			config.AnnounceInterval = 20 * time.Millisecond
			config.NeighborExpiry = 0
			config.Sanitize()

			adapter, err := pubsub.NewDirected(config, bus.Broker(), pubsub.WithLogger(log.DiscardLogger))
			require.NoError(t, err)
			adapters[id] = adapter
			devices[id] = newDevice(t, id, adapter)
		}

		require.Eventually(t, func() bool {
			return len(adapters["1"].Reachable()) == 2
		}, 2*time.Second, 10*time.Millisecond)

		outbound := envelope.NewOutbound().
			Set(gradient, 1).
			SetFor("3", gradient, 3)

		expected := map[envelope.NeighborID]int{"2": 1, "3": 3}
		for neighbor, value := range expected {
			mailbox := devices[neighbor]
			require.Eventually(t, func() bool {
				// one envelope per round, as a device would
				require.NoError(t, devices["1"].DeliverOutbound(outbound))
				values, err := DataAt[int](mailbox.CurrentInbound(), gradient)
				return err == nil && values["1"] == value
			}, 2*time.Second, 10*time.Millisecond)
		}

		closeAll(t, devices["1"], devices["2"], devices["3"])
	})
}

func TestMailboxOverRadio(t *testing.T) {
	ether := radio.NewEther()
	ids := []envelope.NeighborID{"1", "2"}
	devices := make(map[envelope.NeighborID]*Mailbox, len(ids))
	for _, id := range ids {
		config := radio.NewConfig(id)
		config.ScanInterval = 10 * time.Millisecond
		config.ReadInterval = 10 * time.Millisecond

		adapter, err := radio.NewAdapter(config, ether.Radio("addr-"+id.String()), radio.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		devices[id] = newDevice(t, id, adapter)
	}

	require.NoError(t, devices["1"].DeliverOutbound(envelope.NewOutbound().Set(gradient, 0.5)))
	require.NoError(t, devices["2"].DeliverOutbound(envelope.NewOutbound().Set(gradient, 1.5)))

	require.Eventually(t, func() bool {
		values, err := DataAt[float64](devices["1"].CurrentInbound(), gradient)
		return err == nil && values["2"] == 1.5
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		values, err := DataAt[float64](devices["2"].CurrentInbound(), gradient)
		return err == nil && values["1"] == 0.5
	}, 2*time.Second, 10*time.Millisecond)

	closeAll(t, devices["1"], devices["2"])
}
