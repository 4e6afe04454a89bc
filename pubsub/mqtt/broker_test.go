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

package mqtt

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/pubsub"
)

func TestConfig(t *testing.T) {
	t.Run("With defaults", func(t *testing.T) {
		config := &Config{Server: "tcp://127.0.0.1:1883"}
		config.Sanitize()
		require.NoError(t, config.Validate())

		require.True(t, strings.HasPrefix(config.ClientID, "mailbox-"))
		_, err := uuid.Parse(strings.TrimPrefix(config.ClientID, "mailbox-"))
		require.NoError(t, err)
		assert.Equal(t, DefaultQoS, *config.QoS)
		assert.Equal(t, 2*time.Second, config.ConnectTimeout)
	})
	t.Run("With unique client ids", func(t *testing.T) {
		first, second := &Config{}, &Config{}
		first.Sanitize()
		second.Sanitize()
		assert.NotEqual(t, first.ClientID, second.ClientID)
	})
	t.Run("With explicit QoS zero", func(t *testing.T) {
		qos := byte(0)
		config := &Config{Server: "tcp://127.0.0.1:1883", QoS: &qos}
		config.Sanitize()
		assert.Zero(t, *config.QoS)
	})
	t.Run("With invalid QoS", func(t *testing.T) {
		qos := byte(3)
		config := &Config{Server: "tcp://127.0.0.1:1883", QoS: &qos}
		assert.Error(t, config.Validate())
	})
	t.Run("With invalid server", func(t *testing.T) {
		assert.Error(t, (&Config{}).Validate())
		assert.Error(t, (&Config{Server: "http://127.0.0.1:1883"}).Validate())
	})
}

func TestTopicMapping(t *testing.T) {
	assert.Equal(t, "drone/+/neighbors", toTopic(pubsub.Topic{"drone", pubsub.Wildcard, "neighbors"}))
	assert.Equal(t, "drone/7", toTopic(pubsub.Topic{"drone", "7"}))
	assert.Equal(t, pubsub.Topic{"drone", "7", "neighbors"}, pubsub.SplitTopic("drone/7/neighbors", separator))
}

func TestBroker(t *testing.T) {
	ctx := context.Background()

	t.Run("With unreachable server", func(t *testing.T) {
		port := dynaport.Get(1)[0]
		broker := NewBroker(&Config{
			Server:         fmt.Sprintf("tcp://127.0.0.1:%d", port),
			ConnectTimeout: 200 * time.Millisecond,
		}, WithLogger(log.DiscardLogger))

		assert.Error(t, broker.Connect(ctx, nil))
		assert.Error(t, broker.Subscribe(ctx, pubsub.Topic{"drone"}, nil))
		assert.Error(t, broker.Publish(ctx, pubsub.Topic{"drone"}, nil))
		require.NoError(t, broker.Close(ctx))
	})
	t.Run("With invalid config", func(t *testing.T) {
		broker := NewBroker(new(Config), WithLogger(log.DiscardLogger))
		assert.Error(t, broker.Connect(ctx, nil))
	})
	t.Run("With adapter start failing on unreachable server", func(t *testing.T) {
		port := dynaport.Get(1)[0]
		config := pubsub.NewConfig("1")
		config.ConnectRetries = 2
		config.ConnectBackoff = time.Millisecond
		config.MaxConnectBackoff = time.Millisecond

		adapter, err := pubsub.NewShared(config, NewBroker(&Config{
			Server:         fmt.Sprintf("tcp://127.0.0.1:%d", port),
			ConnectTimeout: 200 * time.Millisecond,
		}, WithLogger(log.DiscardLogger)), pubsub.WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		err = adapter.Start(ctx)
		require.Error(t, err)
		assert.False(t, adapter.Ready())
		require.NoError(t, adapter.Stop(ctx))
	})
}
