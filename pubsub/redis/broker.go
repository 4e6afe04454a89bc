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

// Package redis implements pubsub.Broker with Redis PUBLISH and PSUBSCRIBE.
// Topic levels are joined with ":" and the level wildcard is the glob "*".
// A glob also matches across levels, so every subscription only hands over
// the channels matching its filter level by level.
package redis

import (
	"context"
	"errors"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/fieldmesh/mailbox/internal/ticker"
	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/pubsub"
)

const (
	separator = ":"
	wildcard  = "*"
)

var (
	errNotConnected     = errors.New("redis: not connected")
	errAlreadyConnected = errors.New("redis: already connected")
)

// Broker is a pubsub.Broker backed by a Redis client
type Broker struct {
	config *Config
	logger log.Logger

	mu            sync.Mutex
	client        *goredis.Client
	subscriptions []*goredis.PubSub
	healthy       *atomic.Bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// enforce compilation error
var _ pubsub.Broker = (*Broker)(nil)

// NewBroker creates a Redis broker. The connection is opened by Connect.
func NewBroker(config *Config, opts ...Option) *Broker {
	broker := &Broker{
		config:  config,
		logger:  log.DefaultLogger,
		healthy: atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(broker)
	}
	return broker
}

// Connect creates the client and pings the server. A background health check
// reports lost and restored connections to listener. Connect fails while a
// connection is open.
func (b *Broker) Connect(ctx context.Context, listener pubsub.ConnectionListener) error {
	b.mu.Lock()
	connected := b.client != nil
	b.mu.Unlock()
	if connected {
		return errAlreadyConnected
	}

	b.config.Sanitize()
	if err := b.config.Validate(); err != nil {
		return err
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        b.config.Address,
		Username:    b.config.Username,
		Password:    b.config.Password,
		DB:          b.config.DB,
		DialTimeout: b.config.DialTimeout,
		Protocol:    2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return multierr.Append(err, client.Close())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return multierr.Append(errAlreadyConnected, client.Close())
	}

	b.client = client
	b.healthy.Store(true)
	b.stop = make(chan struct{})
	b.wg.Add(1)
	go b.healthLoop(client, listener, b.stop)
	return nil
}

// Subscribe implements pubsub.Broker
func (b *Broker) Subscribe(ctx context.Context, filter pubsub.Topic, handler pubsub.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return errNotConnected
	}

	subscription := b.client.PSubscribe(ctx, toChannel(filter))
	// wait for the subscription confirmation
	if _, err := subscription.Receive(ctx); err != nil {
		return multierr.Append(err, subscription.Close())
	}

	b.subscriptions = append(b.subscriptions, subscription)
	b.wg.Add(1)
	go b.receiveLoop(subscription.Channel(), filter, handler)
	return nil
}

// Publish implements pubsub.Broker
func (b *Broker) Publish(ctx context.Context, topic pubsub.Topic, payload []byte) error {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	if client == nil {
		return errNotConnected
	}
	return client.Publish(ctx, toChannel(topic), payload).Err()
}

// Close stops the health check, closes the subscriptions and the client
func (b *Broker) Close(context.Context) error {
	b.mu.Lock()
	if b.client == nil {
		b.mu.Unlock()
		return nil
	}

	close(b.stop)
	var err error
	for _, subscription := range b.subscriptions {
		err = multierr.Append(err, subscription.Close())
	}
	err = multierr.Append(err, b.client.Close())

	b.client = nil
	b.subscriptions = nil
	b.healthy.Store(false)
	b.mu.Unlock()

	b.wg.Wait()
	return err
}

func (b *Broker) receiveLoop(messages <-chan *goredis.Message, filter pubsub.Topic, handler pubsub.MessageHandler) {
	defer b.wg.Done()
	for message := range messages {
		topic := pubsub.SplitTopic(message.Channel, separator)
		if !filter.Matches(topic) {
			continue
		}
		handler(topic, []byte(message.Payload))
	}
}

func (b *Broker) healthLoop(client *goredis.Client, listener pubsub.ConnectionListener, stop <-chan struct{}) {
	defer b.wg.Done()

	tick := ticker.New(b.config.HealthCheckInterval)
	tick.Start()
	defer tick.Stop()

	for {
		select {
		case <-tick.Ticks:
			ctx, cancel := context.WithTimeout(context.Background(), b.config.DialTimeout)
			err := client.Ping(ctx).Err()
			cancel()

			healthy := err == nil
			if b.healthy.Swap(healthy) == healthy {
				continue
			}

			select {
			case <-stop:
				return
			default:
			}

			if healthy {
				b.logger.Info("redis connection restored")
			} else {
				b.logger.Warnf("redis connection lost: %v", err)
			}

			if listener != nil {
				listener(healthy)
			}
		case <-stop:
			return
		}
	}
}

func toChannel(topic pubsub.Topic) string {
	return topic.Join(separator, wildcard)
}
