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

// Package nats implements pubsub.Broker on top of a NATS server.
// Topic levels are joined with "." and the level wildcard is "*".
package nats

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"

	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/pubsub"
)

const (
	separator = "."
	wildcard  = "*"
)

var (
	errNotConnected     = errors.New("nats: not connected")
	errAlreadyConnected = errors.New("nats: already connected")
)

// Broker is a pubsub.Broker backed by a NATS connection
type Broker struct {
	config *Config
	logger log.Logger

	mu            sync.Mutex
	connection    *nats.Conn
	subscriptions []*nats.Subscription
}

// enforce compilation error
var _ pubsub.Broker = (*Broker)(nil)

// NewBroker creates a NATS broker. The connection is opened by Connect.
func NewBroker(config *Config, opts ...Option) *Broker {
	broker := &Broker{
		config: config,
		logger: log.DefaultLogger,
	}

	for _, opt := range opts {
		opt.Apply(broker)
	}
	return broker
}

// Connect dials the NATS server. Later disconnections and reconnections are
// reported to listener; the client reconnects forever and restores the
// subscriptions by itself. Connect fails while a connection is open.
func (b *Broker) Connect(ctx context.Context, listener pubsub.ConnectionListener) error {
	b.mu.Lock()
	connected := b.connection != nil
	b.mu.Unlock()
	if connected {
		return errAlreadyConnected
	}

	b.config.Sanitize()
	if err := b.config.Validate(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	opts := nats.GetDefaultOptions()
	opts.Url = b.config.Server
	opts.Name = b.config.Name
	opts.Timeout = b.dialTimeout(ctx)
	opts.ReconnectWait = b.config.ReconnectWait
	opts.MaxReconnect = -1
	opts.DisconnectedErrCB = func(_ *nats.Conn, err error) {
		if err != nil {
			b.logger.Warnf("nats connection lost: %v", err)
		}
		if listener != nil {
			listener(false)
		}
	}
	opts.ReconnectedCB = func(conn *nats.Conn) {
		b.logger.Infof("nats connection restored to %s", conn.ConnectedUrl())
		if listener != nil {
			listener(true)
		}
	}

	connection, err := opts.Connect()
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connection != nil {
		connection.Close()
		return errAlreadyConnected
	}
	b.connection = connection
	return nil
}

// Subscribe implements pubsub.Broker
func (b *Broker) Subscribe(_ context.Context, filter pubsub.Topic, handler pubsub.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connection == nil {
		return errNotConnected
	}

	subscription, err := b.connection.Subscribe(toSubject(filter), func(msg *nats.Msg) {
		handler(pubsub.SplitTopic(msg.Subject, separator), msg.Data)
	})
	if err != nil {
		return err
	}

	b.subscriptions = append(b.subscriptions, subscription)
	return nil
}

// Publish implements pubsub.Broker
func (b *Broker) Publish(ctx context.Context, topic pubsub.Topic, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	connection := b.connection
	b.mu.Unlock()

	if connection == nil {
		return errNotConnected
	}
	return connection.Publish(toSubject(topic), payload)
}

// Close unsubscribes and closes the connection
func (b *Broker) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connection == nil {
		return nil
	}

	var err error
	for _, subscription := range b.subscriptions {
		if subscription != nil && subscription.IsValid() {
			err = multierr.Append(err, subscription.Unsubscribe())
		}
	}

	if !b.connection.IsClosed() {
		if flushErr := b.connection.Flush(); flushErr != nil && !errors.Is(flushErr, nats.ErrConnectionClosed) {
			err = multierr.Append(err, flushErr)
		}
	}

	// the disconnection of a closing connection is not a lost connection
	b.connection.SetDisconnectErrHandler(nil)
	b.connection.Close()
	b.connection = nil
	b.subscriptions = nil
	return err
}

func (b *Broker) dialTimeout(ctx context.Context) time.Duration {
	timeout := b.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

func toSubject(topic pubsub.Topic) string {
	return topic.Join(separator, wildcard)
}
