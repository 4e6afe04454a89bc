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

// Package mqtt implements pubsub.Broker on top of an MQTT broker.
// Topic levels map one to one on MQTT levels and the level wildcard is "+".
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/pubsub"
)

const (
	separator = "/"
	wildcard  = "+"

	disconnectQuiesceMillis = 250
)

var (
	errNotConnected     = errors.New("mqtt: not connected")
	errAlreadyConnected = errors.New("mqtt: already connected")
)

type subscription struct {
	filter  string
	handler pubsub.MessageHandler
}

// Broker is a pubsub.Broker backed by a paho MQTT client
type Broker struct {
	config *Config
	logger log.Logger

	mu            sync.Mutex
	client        paho.Client
	subscriptions []subscription
	// set once the first connection succeeded
	connectedOnce *atomic.Bool
}

// enforce compilation error
var _ pubsub.Broker = (*Broker)(nil)

// NewBroker creates an MQTT broker. The connection is opened by Connect.
func NewBroker(config *Config, opts ...Option) *Broker {
	broker := &Broker{
		config:        config,
		logger:        log.DefaultLogger,
		connectedOnce: atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(broker)
	}
	return broker
}

// Connect connects to the MQTT broker. The client reconnects by itself;
// subscriptions are restored on every reconnection before listener is told.
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

	options := paho.NewClientOptions().
		AddBroker(b.config.Server).
		SetClientID(b.config.ClientID).
		SetUsername(b.config.Username).
		SetPassword(b.config.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(b.config.ConnectTimeout).
		SetMaxReconnectInterval(b.config.MaxReconnectInterval).
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			b.logger.Warnf("mqtt connection lost: %v", err)
			if listener != nil {
				listener(false)
			}
		}).
		SetOnConnectHandler(func(client paho.Client) {
			if !b.connectedOnce.CompareAndSwap(false, true) {
				b.resubscribe(client)
				b.logger.Info("mqtt connection restored")
				if listener != nil {
					listener(true)
				}
			}
		})

	client := paho.NewClient(options)
	if err := wait(ctx, client.Connect()); err != nil {
		client.Disconnect(0)
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		client.Disconnect(0)
		return errAlreadyConnected
	}
	b.client = client
	return nil
}

// Subscribe implements pubsub.Broker
func (b *Broker) Subscribe(ctx context.Context, filter pubsub.Topic, handler pubsub.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return errNotConnected
	}

	sub := subscription{filter: toTopic(filter), handler: handler}
	if err := wait(ctx, b.client.Subscribe(sub.filter, *b.config.QoS, onMessage(handler))); err != nil {
		return err
	}

	b.subscriptions = append(b.subscriptions, sub)
	return nil
}

// Publish implements pubsub.Broker. Messages are never retained.
func (b *Broker) Publish(ctx context.Context, topic pubsub.Topic, payload []byte) error {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	if client == nil || !client.IsConnectionOpen() {
		return errNotConnected
	}
	return wait(ctx, client.Publish(toTopic(topic), *b.config.QoS, false, payload))
}

// Close disconnects from the broker
func (b *Broker) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil
	}

	b.client.Disconnect(disconnectQuiesceMillis)
	b.client = nil
	b.subscriptions = nil
	b.connectedOnce.Store(false)
	return nil
}

func (b *Broker) resubscribe(client paho.Client) {
	b.mu.Lock()
	subscriptions := append([]subscription(nil), b.subscriptions...)
	b.mu.Unlock()

	for _, sub := range subscriptions {
		token := client.Subscribe(sub.filter, *b.config.QoS, onMessage(sub.handler))
		if token.WaitTimeout(b.config.ConnectTimeout) && token.Error() != nil {
			b.logger.Errorf("failed to restore subscription=(%s): %v", sub.filter, token.Error())
		}
	}
}

func onMessage(handler pubsub.MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, message paho.Message) {
		handler(pubsub.SplitTopic(message.Topic(), separator), message.Payload())
	}
}

// wait blocks until token completes or ctx is done
func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toTopic(topic pubsub.Topic) string {
	return topic.Join(separator, wildcard)
}

func newClientID() string {
	return fmt.Sprintf("mailbox-%s", uuid.NewString())
}
