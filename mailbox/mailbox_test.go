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
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fieldmesh/mailbox/codec"
	"github.com/fieldmesh/mailbox/envelope"
	gerrors "github.com/fieldmesh/mailbox/errors"
	"github.com/fieldmesh/mailbox/log"
)

var gradient = envelope.NewPath("gradient", "0")

func newTestMailbox(t *testing.T, id envelope.NeighborID, tr *fakeTransport, opts ...Option) *Mailbox {
	t.Helper()
	opts = append([]Option{
		WithLogger(log.DiscardLogger),
		WithMeterProvider(noop.NewMeterProvider()),
	}, opts...)

	mailbox, err := New(id, tr, opts...)
	require.NoError(t, err)
	return mailbox
}

func encodeFrom(t *testing.T, c *codec.Codec, sender envelope.NeighborID, values map[envelope.Path]any) []byte {
	t.Helper()
	msg, err := c.EncodeValues(sender, values)
	require.NoError(t, err)
	payload, err := c.Encode(msg)
	require.NoError(t, err)
	return payload
}

func TestNew(t *testing.T) {
	t.Run("With empty local id", func(t *testing.T) {
		_, err := New("", newFakeTransport())
		assert.ErrorIs(t, err, gerrors.ErrInvalidNeighborID)
	})
	t.Run("With missing transport", func(t *testing.T) {
		_, err := New("1", nil)
		assert.Error(t, err)
	})
	t.Run("With invalid retention window", func(t *testing.T) {
		_, err := New("1", newFakeTransport(), WithRetentionWindow(0), WithLogger(log.DiscardLogger))
		assert.ErrorIs(t, err, gerrors.ErrInvalidRetentionWindow)
	})
	t.Run("With invalid inbound queue size", func(t *testing.T) {
		_, err := New("1", newFakeTransport(), WithInboundQueueSize(0))
		assert.Error(t, err)
	})
	t.Run("With invalid send timeout", func(t *testing.T) {
		_, err := New("1", newFakeTransport(), WithSendTimeout(-time.Second))
		assert.Error(t, err)
	})
	t.Run("With defaults", func(t *testing.T) {
		tr := newFakeTransport()
		mailbox := newTestMailbox(t, "1", tr)
		assert.Equal(t, envelope.NeighborID("1"), mailbox.LocalID())
		assert.Equal(t, codec.FormatProtobuf, mailbox.codec.Format())
		assert.Equal(t, DefaultRetentionWindow, mailbox.store.Window())
		assert.False(t, mailbox.Ready())
		require.NoError(t, mailbox.Close(context.Background()))
	})
}

func TestRetention(t *testing.T) {
	clock := newManualClock()
	mailbox := newTestMailbox(t, "1", newFakeTransport(), WithClock(clock.Now), WithRetentionWindow(5*time.Second))
	defer func() { _ = mailbox.Close(context.Background()) }()

	msg := envelope.NewMessage("2")
	msg.SharedData[gradient] = []byte("x")
	mailbox.DeliverableReceived(msg)

	clock.Advance(4900 * time.Millisecond)
	assert.True(t, mailbox.CurrentInbound().Neighbors().Contains("2"))

	clock.Advance(200 * time.Millisecond)
	assert.Zero(t, mailbox.CurrentInbound().Len())
}

func TestPartialStaleness(t *testing.T) {
	clock := newManualClock()
	c, err := codec.New(codec.FormatJSON)
	require.NoError(t, err)
	mailbox := newTestMailbox(t, "1", newFakeTransport(), WithClock(clock.Now), WithCodec(c))
	defer func() { _ = mailbox.Close(context.Background()) }()

	deliver := func(sender envelope.NeighborID, value float64) {
		msg, err := c.EncodeValues(sender, map[envelope.Path]any{gradient: value})
		require.NoError(t, err)
		mailbox.DeliverableReceived(msg)
	}

	deliver("A", 1)
	clock.Advance(3 * time.Second)
	deliver("B", 2)
	clock.Advance(1500 * time.Millisecond)
	deliver("C", 3)
	clock.Advance(700 * time.Millisecond)

	inbound := mailbox.CurrentInbound()
	assert.Equal(t, []envelope.NeighborID{"B", "C"}, inbound.SortedNeighbors())

	values, err := DataAt[float64](inbound, gradient)
	require.NoError(t, err)
	assert.Equal(t, map[envelope.NeighborID]float64{"B": 2, "C": 3}, values)
}

func TestOverwrite(t *testing.T) {
	clock := newManualClock()
	mailbox := newTestMailbox(t, "1", newFakeTransport(), WithClock(clock.Now))
	defer func() { _ = mailbox.Close(context.Background()) }()

	c := mailbox.codec
	first, err := c.EncodeValues("A", map[envelope.Path]any{gradient: "env1"})
	require.NoError(t, err)
	second, err := c.EncodeValues("A", map[envelope.Path]any{gradient: "env2"})
	require.NoError(t, err)

	mailbox.DeliverableReceived(first)
	clock.Advance(time.Second)
	mailbox.DeliverableReceived(second)
	clock.Advance(time.Second)

	values, err := DataAt[string](mailbox.CurrentInbound(), gradient)
	require.NoError(t, err)
	assert.Equal(t, map[envelope.NeighborID]string{"A": "env2"}, values)
}

func TestSelfLoopback(t *testing.T) {
	tr := newFakeTransport()
	mailbox := newTestMailbox(t, "1", tr)
	defer func() { _ = mailbox.Close(context.Background()) }()
	require.NoError(t, mailbox.Start(context.Background()))

	self := envelope.NewMessage("1")
	self.SharedData[gradient] = []byte("x")
	mailbox.DeliverableReceived(self)
	mailbox.DeliverableReceived(envelope.NewMessage(""))
	assert.Zero(t, mailbox.CurrentInbound().Len())

	// a relayed envelope declaring the local device is ignored too
	tr.arrive("2", encodeFrom(t, mailbox.codec, "1", map[envelope.Path]any{gradient: 1}))
	tr.arrive("2", encodeFrom(t, mailbox.codec, "3", map[envelope.Path]any{gradient: 3}))
	require.Eventually(t, func() bool {
		return mailbox.CurrentInbound().Len() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []envelope.NeighborID{"3"}, mailbox.CurrentInbound().SortedNeighbors())
}

func TestMalformedIsolation(t *testing.T) {
	formats := []codec.Format{codec.FormatProtobuf, codec.FormatJSON, codec.FormatCBOR, codec.FormatMsgpack}
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			c, err := codec.New(format)
			require.NoError(t, err)

			tr := newFakeTransport()
			mailbox := newTestMailbox(t, "1", tr, WithCodec(c))
			defer func() { _ = mailbox.Close(context.Background()) }()
			require.NoError(t, mailbox.Start(context.Background()))

			tr.arrive("A", encodeFrom(t, c, "A", map[envelope.Path]any{gradient: 42}))
			tr.arrive("B", encodeFrom(t, c, "B", map[envelope.Path]any{gradient: "not a number"}))
			tr.arrive("C", []byte("garbage"))
			tr.arrive("D", encodeFrom(t, c, "D", map[envelope.Path]any{envelope.NewPath("other"): 1}))

			require.Eventually(t, func() bool {
				return mailbox.CurrentInbound().Len() == 3
			}, time.Second, 5*time.Millisecond)

			inbound := mailbox.CurrentInbound()
			assert.False(t, inbound.Neighbors().Contains("C"))

			values, err := DataAt[int](inbound, gradient)
			assert.Equal(t, map[envelope.NeighborID]int{"A": 42}, values)
			require.Error(t, err)

			var deserializationErr *gerrors.DeserializationError
			require.True(t, errors.As(err, &deserializationErr))
			assert.Equal(t, envelope.NeighborID("B"), deserializationErr.SenderID)
			assert.Equal(t, gradient, deserializationErr.Path)
			assert.ErrorIs(t, err, gerrors.ErrMalformedMessage)

			raw := inbound.RawAt(gradient)
			assert.Len(t, raw, 2)
			msg, ok := inbound.Message("D")
			require.True(t, ok)
			assert.Equal(t, envelope.NeighborID("D"), msg.SenderID)
		})
	}
}

func TestDeliverOutbound(t *testing.T) {
	ctx := context.Background()

	t.Run("With broadcast", func(t *testing.T) {
		tr := newFakeTransport()
		mailbox := newTestMailbox(t, "1", tr)
		require.NoError(t, mailbox.Start(ctx))
		assert.True(t, mailbox.Ready())

		outbound := envelope.NewOutbound().Set(gradient, 2.5)
		require.NoError(t, mailbox.DeliverOutbound(outbound))
		require.NoError(t, mailbox.DeliverOutbound(nil))

		require.Eventually(t, func() bool {
			return len(tr.sent()) == 1
		}, time.Second, 5*time.Millisecond)

		msg, err := mailbox.codec.Decode(tr.sent()[0])
		require.NoError(t, err)
		assert.Equal(t, envelope.NeighborID("1"), msg.SenderID)
		value, ok, err := codec.DecodeValueAt[float64](mailbox.codec, msg, gradient)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 2.5, value)

		require.NoError(t, mailbox.Close(ctx))
	})
	t.Run("With per neighbor values", func(t *testing.T) {
		tr := newFakeDirected("2", "3")
		mailbox, err := New("1", tr, WithLogger(log.DiscardLogger), WithMeterProvider(noop.NewMeterProvider()))
		require.NoError(t, err)
		require.NoError(t, mailbox.Start(ctx))

		outbound := envelope.NewOutbound().
			Set(gradient, 1).
			SetFor("3", gradient, 7)
		require.NoError(t, mailbox.DeliverOutbound(outbound))

		require.Eventually(t, func() bool {
			return tr.payloadFor("2") != nil && tr.payloadFor("3") != nil
		}, time.Second, 5*time.Millisecond)

		for neighbor, expected := range map[envelope.NeighborID]int{"2": 1, "3": 7} {
			msg, err := mailbox.codec.Decode(tr.payloadFor(neighbor))
			require.NoError(t, err)
			value, _, err := codec.DecodeValueAt[int](mailbox.codec, msg, gradient)
			require.NoError(t, err)
			assert.Equal(t, expected, value)
		}
		assert.Empty(t, tr.sent())
		require.NoError(t, mailbox.Close(ctx))
	})
	t.Run("With unsupported value left out", func(t *testing.T) {
		tr := newFakeTransport()
		mailbox := newTestMailbox(t, "1", tr)
		require.NoError(t, mailbox.Start(ctx))

		outbound := envelope.NewOutbound().
			Set(gradient, 1).
			Set(envelope.NewPath("channel"), make(chan int))
		require.NoError(t, mailbox.DeliverOutbound(outbound))

		require.Eventually(t, func() bool {
			return len(tr.sent()) == 1
		}, time.Second, 5*time.Millisecond)

		msg, err := mailbox.codec.Decode(tr.sent()[0])
		require.NoError(t, err)
		assert.Equal(t, []envelope.Path{gradient}, msg.Paths())
		require.NoError(t, mailbox.Close(ctx))
	})
	t.Run("With closed mailbox", func(t *testing.T) {
		mailbox := newTestMailbox(t, "1", newFakeTransport())
		require.NoError(t, mailbox.Close(ctx))
		assert.ErrorIs(t, mailbox.DeliverOutbound(envelope.NewOutbound()), gerrors.ErrTransportClosed)
	})
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	t.Run("With transport unavailable then recovered", func(t *testing.T) {
		tr := newFakeTransport(errBrokerDown)
		mailbox := newTestMailbox(t, "1", tr)

		err := mailbox.Start(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrTransportUnavailable)
		assert.ErrorIs(t, err, errBrokerDown)
		assert.False(t, mailbox.Ready())
		assert.Zero(t, mailbox.CurrentInbound().Len())

		// the round keeps going while the transport is down
		require.NoError(t, mailbox.DeliverOutbound(envelope.NewOutbound().Set(gradient, 1)))

		require.NoError(t, mailbox.Start(ctx))
		assert.True(t, mailbox.Ready())
		assert.ErrorIs(t, mailbox.Start(ctx), gerrors.ErrAlreadyStarted)
		require.NoError(t, mailbox.Close(ctx))
	})
	t.Run("With already wrapped failure", func(t *testing.T) {
		cause := gerrors.NewErrTransportUnavailable(errBrokerDown)
		mailbox := newTestMailbox(t, "1", newFakeTransport(cause))
		err := mailbox.Start(ctx)
		assert.Equal(t, cause, err)
		require.NoError(t, mailbox.Close(ctx))
	})
	t.Run("With closed mailbox", func(t *testing.T) {
		mailbox := newTestMailbox(t, "1", newFakeTransport())
		require.NoError(t, mailbox.Close(ctx))
		assert.ErrorIs(t, mailbox.Start(ctx), gerrors.ErrTransportClosed)
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	mailbox := newTestMailbox(t, "1", tr)
	require.NoError(t, mailbox.Start(ctx))

	msg := envelope.NewMessage("2")
	msg.SharedData[gradient] = []byte("x")
	mailbox.DeliverableReceived(msg)
	require.Equal(t, 1, mailbox.CurrentInbound().Len())

	require.NoError(t, mailbox.Close(ctx))
	require.NoError(t, mailbox.Close(ctx))

	assert.True(t, tr.stopped.Load())
	assert.False(t, mailbox.Ready())
	assert.Zero(t, mailbox.CurrentInbound().Len())

	mailbox.DeliverableReceived(msg)
	assert.Zero(t, mailbox.CurrentInbound().Len())

	// the arrivals channel is drained then closed
	for range mailbox.Arrivals() {
	}
}

func TestIdleWriteLoop(t *testing.T) {
	tr := newFakeTransport()
	mailbox := newTestMailbox(t, "1", tr)
	defer func() { _ = mailbox.Close(context.Background()) }()
	require.NoError(t, mailbox.Start(context.Background()))

	msg := encodeFrom(t, mailbox.codec, "2", map[envelope.Path]any{gradient: 2})
	tr.arrive("2", msg)
	require.Eventually(t, func() bool {
		return mailbox.CurrentInbound().Len() == 1
	}, time.Second, 5*time.Millisecond)

	// the loop must stay parked on its channels while nothing arrives
	for range 20 {
		states := writeLoopStates()
		require.NotEmpty(t, states, "write loop not parked")
		for _, state := range states {
			require.True(t, strings.HasPrefix(state, "select"), "write loop state=(%s)", state)
		}
		time.Sleep(10 * time.Millisecond)
	}

	tr.arrive("3", encodeFrom(t, mailbox.codec, "3", map[envelope.Path]any{gradient: 3}))
	require.Eventually(t, func() bool {
		return mailbox.CurrentInbound().Len() == 2
	}, time.Second, 5*time.Millisecond)
}

// writeLoopStates returns the scheduler state of every goroutine running
// writeLoop. Goroutines running on another thread have no stack to show.
func writeLoopStates() []string {
	buf := make([]byte, 1<<20)
	buf = buf[:runtime.Stack(buf, true)]

	var states []string
	for _, block := range strings.Split(string(buf), "\n\n") {
		if !strings.Contains(block, "(*Mailbox).writeLoop") {
			continue
		}
		header, _, _ := strings.Cut(block, "\n")
		_, state, _ := strings.Cut(header, "[")
		states = append(states, strings.TrimSuffix(state, "]:"))
	}
	return states
}

func TestArrivals(t *testing.T) {
	tr := newFakeTransport()
	mailbox := newTestMailbox(t, "1", tr, WithInboundQueueSize(1))
	defer func() { _ = mailbox.Close(context.Background()) }()

	first := envelope.NewMessage("2")
	second := envelope.NewMessage("3")
	mailbox.DeliverableReceived(first)
	// dropped: the channel is full
	mailbox.DeliverableReceived(second)

	select {
	case sender := <-mailbox.Arrivals():
		assert.Equal(t, envelope.NeighborID("2"), sender)
	case <-time.After(time.Second):
		t.Fatal("no arrival notified")
	}

	select {
	case sender := <-mailbox.Arrivals():
		t.Fatalf("unexpected arrival from %s", sender)
	default:
	}
	assert.Equal(t, 2, mailbox.CurrentInbound().Len())
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	c, err := codec.New(codec.FormatJSON)
	require.NoError(t, err)

	tr := newFakeTransport()
	mailbox, err := New("1", tr, WithLogger(log.DiscardLogger), WithMeterProvider(provider), WithCodec(c))
	require.NoError(t, err)
	require.NoError(t, mailbox.Start(ctx))

	tr.arrive("2", encodeFrom(t, c, "2", map[envelope.Path]any{gradient: "text"}))
	tr.arrive("3", []byte("{"))
	require.NoError(t, mailbox.DeliverOutbound(envelope.NewOutbound().Set(gradient, 1)))

	collect := func() map[string]int64 {
		var data metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &data))
		values := make(map[string]int64)
		for _, scope := range data.ScopeMetrics {
			for _, m := range scope.Metrics {
				switch agg := m.Data.(type) {
				case metricdata.Sum[int64]:
					for _, point := range agg.DataPoints {
						values[m.Name] += point.Value
					}
				case metricdata.Gauge[int64]:
					for _, point := range agg.DataPoints {
						values[m.Name] += point.Value
					}
				}
			}
		}
		return values
	}

	require.Eventually(t, func() bool {
		values := collect()
		return values["mailbox_received_count"] == 1 &&
			values["mailbox_malformed_count"] == 1 &&
			values["mailbox_sent_count"] == 1
	}, time.Second, 5*time.Millisecond)

	_, err = DataAt[int](mailbox.CurrentInbound(), gradient)
	require.Error(t, err)

	values := collect()
	assert.EqualValues(t, 1, values["mailbox_value_decode_failure_count"])
	assert.EqualValues(t, 1, values["mailbox_neighbors"])
	assert.Zero(t, values["mailbox_dropped_count"])
	assert.Zero(t, values["mailbox_send_failure_count"])

	require.NoError(t, mailbox.Close(ctx))
}
