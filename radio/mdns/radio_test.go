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

package mdns

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/radio"
)

func testService() radio.Service {
	return radio.Service{
		ID:             radio.ServiceUUID,
		Characteristic: radio.CharacteristicUUID,
		LocalName:      radio.LocalName(radio.DefaultNamePrefix, "1"),
	}
}

func TestConfig(t *testing.T) {
	config := new(Config)
	config.Sanitize()
	require.NoError(t, config.Validate())
	assert.Equal(t, "_collektive._tcp", config.Service)
	assert.Equal(t, "local.", config.Domain)
	assert.Equal(t, "0.0.0.0:0", config.BindAddress)

	config.BindAddress = "nowhere"
	assert.Error(t, config.Validate())
}

func TestCharacteristic(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	value := atomic.NewString("")
	server := serveCharacteristic(listener, radio.CharacteristicUUID, func() []byte {
		return []byte(value.Load())
	})

	address := listener.Addr().String()

	t.Run("With value read", func(t *testing.T) {
		client, err := dialCharacteristic(ctx, address, radio.CharacteristicUUID, 1024)
		require.NoError(t, err)

		read, err := client.Read(ctx)
		require.NoError(t, err)
		assert.Empty(t, read)

		value.Store("payload")
		readCtx, cancel := context.WithTimeout(ctx, time.Second)
		read, err = client.Read(readCtx)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, "payload", string(read))
		require.NoError(t, client.Close())
	})
	t.Run("With unknown characteristic", func(t *testing.T) {
		client, err := dialCharacteristic(ctx, address, uuid.New(), 1024)
		require.NoError(t, err)
		_, err = client.Read(ctx)
		assert.ErrorIs(t, err, errUnknownCharacteristic)
		require.NoError(t, client.Close())
	})
	t.Run("With value too large", func(t *testing.T) {
		value.Store("a value larger than the limit")
		client, err := dialCharacteristic(ctx, address, radio.CharacteristicUUID, 4)
		require.NoError(t, err)
		_, err = client.Read(ctx)
		assert.Error(t, err)
		require.NoError(t, client.Close())
	})
	t.Run("With server closed", func(t *testing.T) {
		client, err := dialCharacteristic(ctx, address, radio.CharacteristicUUID, 1024)
		require.NoError(t, err)
		_, err = client.Read(ctx)
		require.NoError(t, err)

		require.NoError(t, server.close())
		_, err = client.Read(ctx)
		assert.Error(t, err)
		require.NoError(t, client.Close())

		_, err = dialCharacteristic(ctx, address, radio.CharacteristicUUID, 1024)
		assert.ErrorIs(t, err, radio.ErrPeerUnreachable)
	})
}

func TestToPeer(t *testing.T) {
	service := testService()
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "collektive-2"},
		Port:          4242,
		AddrIPv4:      []net.IP{net.ParseIP("192.168.1.12")},
		Text: []string{
			"service=" + radio.ServiceUUID.String(),
			"characteristic=" + radio.CharacteristicUUID.String(),
		},
	}

	peer, ok := toPeer(entry, service)
	require.True(t, ok)
	assert.Equal(t, radio.Peer{Address: "192.168.1.12:4242", LocalName: "collektive-2"}, peer)

	entry.Text = []string{"service=" + uuid.NewString(), "characteristic=" + radio.CharacteristicUUID.String()}
	_, ok = toPeer(entry, service)
	assert.False(t, ok)

	entry.Text = nil
	_, ok = toPeer(entry, service)
	assert.False(t, ok)

	entry.AddrIPv4 = nil
	_, ok = toPeer(entry, service)
	assert.False(t, ok)
}

func TestRadio(t *testing.T) {
	t.Run("With multicast interface", func(t *testing.T) {
		r, err := NewRadio(new(Config), WithLogger(log.DiscardLogger), WithInterfaces(func() ([]net.Interface, error) {
			return []net.Interface{{Name: "eth0", Flags: net.FlagUp | net.FlagMulticast}}, nil
		}))
		require.NoError(t, err)
		assert.True(t, r.Enabled())

		require.NoError(t, r.Close())
		assert.False(t, r.Enabled())
		assert.ErrorIs(t, r.Serve(context.Background(), testService(), nil), radio.ErrRadioDisabled)
		_, err = r.Scan(context.Background(), testService())
		assert.ErrorIs(t, err, radio.ErrRadioDisabled)
		_, err = r.Connect(context.Background(), radio.Peer{}, testService())
		assert.ErrorIs(t, err, radio.ErrRadioDisabled)
	})
	t.Run("With no usable interface", func(t *testing.T) {
		r, err := NewRadio(new(Config), WithLogger(log.DiscardLogger), WithInterfaces(func() ([]net.Interface, error) {
			return []net.Interface{{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}}, nil
		}))
		require.NoError(t, err)
		assert.False(t, r.Enabled())
		require.NoError(t, r.Close())
	})
	t.Run("With interfaces unavailable", func(t *testing.T) {
		r, err := NewRadio(new(Config), WithLogger(log.DiscardLogger), WithInterfaces(func() ([]net.Interface, error) {
			return nil, errors.New("permission denied")
		}))
		require.NoError(t, err)
		assert.False(t, r.Enabled())
		require.NoError(t, r.Close())
	})
	t.Run("With invalid config", func(t *testing.T) {
		_, err := NewRadio(&Config{BindAddress: "nowhere"})
		assert.Error(t, err)
	})
}
