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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fieldmesh/mailbox/envelope"
	gerrors "github.com/fieldmesh/mailbox/errors"
	"github.com/fieldmesh/mailbox/log"
)

type reads struct {
	mu       sync.Mutex
	payloads map[envelope.NeighborID][]string
}

func newReads() *reads {
	return &reads{payloads: make(map[envelope.NeighborID][]string)}
}

func (r *reads) handle(sender envelope.NeighborID, payload []byte) {
	r.mu.Lock()
	r.payloads[sender] = append(r.payloads[sender], string(payload))
	r.mu.Unlock()
}

func (r *reads) from(sender envelope.NeighborID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads[sender]...)
}

func (r *reads) last(sender envelope.NeighborID) string {
	all := r.from(sender)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

func fastConfig(id envelope.NeighborID) *Config {
	return &Config{
		DeviceID:        id,
		ScanInterval:    10 * time.Millisecond,
		ReadInterval:    10 * time.Millisecond,
		RefreshInterval: time.Hour,
	}
}

func startAdapter(t *testing.T, ether *Ether, id envelope.NeighborID, config *Config) (*Adapter, *SimulatedRadio, *reads) {
	t.Helper()
	radio := ether.Radio("addr-" + id.String())
	adapter, err := NewAdapter(config, radio, WithLogger(log.DiscardLogger))
	require.NoError(t, err)

	received := newReads()
	adapter.OnBytesArrived(received.handle)
	require.NoError(t, adapter.Start(context.Background()))
	return adapter, radio, received
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "collektive-12", LocalName(DefaultNamePrefix, "12"))

	id, ok := ParseLocalName(DefaultNamePrefix, "collektive-12")
	require.True(t, ok)
	assert.Equal(t, envelope.NeighborID("12"), id)

	_, ok = ParseLocalName(DefaultNamePrefix, "other-12")
	assert.False(t, ok)
	_, ok = ParseLocalName(DefaultNamePrefix, "collektive-")
	assert.False(t, ok)
}

func TestConfig(t *testing.T) {
	config := NewConfig("1")
	require.NoError(t, config.Validate())
	assert.Equal(t, DefaultNamePrefix, config.NamePrefix)
	assert.Equal(t, "collektive-1", config.service().LocalName)
	assert.Equal(t, ServiceUUID, config.service().ID)
	assert.Equal(t, "0000aaaa-0000-1000-8000-00805f9b34fb", ServiceUUID.String())
	assert.Equal(t, "0000bbbb-0000-1000-8000-00805f9b34fb", CharacteristicUUID.String())

	assert.Error(t, (&Config{}).Validate())
	_, err := NewAdapter(nil, NewEther().Radio("a"))
	assert.Error(t, err)
	_, err = NewAdapter(NewConfig("1"), nil)
	assert.Error(t, err)
}

func TestAdapter(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	t.Run("With latest payload read by the neighbors", func(t *testing.T) {
		ether := NewEther()
		first, _, firstReads := startAdapter(t, ether, "1", fastConfig("1"))
		second, _, secondReads := startAdapter(t, ether, "2", fastConfig("2"))

		require.Eventually(t, func() bool {
			return first.Ready() && second.Ready() &&
				first.Connected().Contains("2") && second.Connected().Contains("1")
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, first.Broadcast(ctx, []byte("round-1")))
		require.Eventually(t, func() bool {
			return secondReads.last("1") == "round-1"
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, first.Broadcast(ctx, []byte("round-2")))
		require.Eventually(t, func() bool {
			return secondReads.last("1") == "round-2"
		}, time.Second, 5*time.Millisecond)

		// unchanged payloads are not delivered again
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, []string{"round-1", "round-2"}, secondReads.from("1"))
		// the device never reads itself
		assert.Empty(t, firstReads.from("1"))
		assert.False(t, first.Connected().Contains("1"))

		require.NoError(t, first.Stop(ctx))
		require.NoError(t, second.Stop(ctx))
	})
	t.Run("With unchanged payload refreshed", func(t *testing.T) {
		ether := NewEther()
		config := fastConfig("1")
		config.RefreshInterval = 20 * time.Millisecond
		reader, _, received := startAdapter(t, ether, "1", config)
		writer, _, _ := startAdapter(t, ether, "2", fastConfig("2"))

		require.NoError(t, writer.Broadcast(ctx, []byte("same")))
		require.Eventually(t, func() bool {
			return len(received.from("2")) >= 3
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, reader.Stop(ctx))
		require.NoError(t, writer.Stop(ctx))
	})
	t.Run("With peer out of range removed", func(t *testing.T) {
		ether := NewEther()
		first, _, _ := startAdapter(t, ether, "1", fastConfig("1"))
		second, _, _ := startAdapter(t, ether, "2", fastConfig("2"))

		require.Eventually(t, func() bool {
			return first.Connected().Contains("2")
		}, time.Second, 5*time.Millisecond)

		ether.SetInRange("addr-1", "addr-2", false)
		require.Eventually(t, func() bool {
			return first.Connected().Cardinality() == 0
		}, time.Second, 5*time.Millisecond)

		ether.SetInRange("addr-1", "addr-2", true)
		require.Eventually(t, func() bool {
			return first.Connected().Contains("2")
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, first.Stop(ctx))
		require.NoError(t, second.Stop(ctx))
	})
	t.Run("With radio disabled", func(t *testing.T) {
		ether := NewEther()
		radio := ether.Radio("addr-1")
		radio.SetEnabled(false)

		adapter, err := NewAdapter(fastConfig("1"), radio, WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		require.NoError(t, adapter.Start(ctx))
		assert.False(t, adapter.Ready())
		require.NoError(t, adapter.Broadcast(ctx, []byte("unseen")))

		other, _, _ := startAdapter(t, ether, "2", fastConfig("2"))
		time.Sleep(30 * time.Millisecond)
		assert.Zero(t, adapter.Connected().Cardinality())
		assert.Zero(t, other.Connected().Cardinality())

		// the adapter recovers once the radio is turned on
		radio.SetEnabled(true)
		require.Eventually(t, func() bool {
			return adapter.Ready() && other.Connected().Contains("1")
		}, time.Second, 5*time.Millisecond)

		radio.SetEnabled(false)
		require.Eventually(t, func() bool {
			return !adapter.Ready() && other.Connected().Cardinality() == 0
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, adapter.Stop(ctx))
		require.NoError(t, other.Stop(ctx))
	})
	t.Run("With stopped adapter", func(t *testing.T) {
		ether := NewEther()
		adapter, _, _ := startAdapter(t, ether, "1", fastConfig("1"))
		assert.ErrorIs(t, adapter.Start(ctx), gerrors.ErrAlreadyStarted)

		require.NoError(t, adapter.Stop(ctx))
		require.NoError(t, adapter.Stop(ctx))
		assert.False(t, adapter.Ready())
		assert.ErrorIs(t, adapter.Broadcast(ctx, []byte("late")), gerrors.ErrTransportClosed)
		assert.ErrorIs(t, adapter.Start(ctx), gerrors.ErrTransportClosed)

		peers, err := ether.Radio("addr-2").Scan(ctx, NewConfig("2").service())
		require.NoError(t, err)
		assert.Empty(t, peers)
	})
	t.Run("With adapter never started", func(t *testing.T) {
		adapter, err := NewAdapter(fastConfig("1"), NewEther().Radio("a"), WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		require.NoError(t, adapter.Stop(ctx))
	})
}
