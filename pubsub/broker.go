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
	"strings"
)

// Wildcard is the topic level matching exactly one level
const Wildcard = "+"

// Topic is a broker-neutral topic made of levels. Drivers translate it
// into their own syntax.
type Topic []string

// String returns the levels joined by a slash
func (t Topic) String() string {
	return strings.Join(t, "/")
}

// Join returns the levels joined by separator, with every Wildcard
// replaced by wildcard.
func (t Topic) Join(separator, wildcard string) string {
	levels := make([]string, len(t))
	for i, level := range t {
		if level == Wildcard {
			level = wildcard
		}
		levels[i] = level
	}
	return strings.Join(levels, separator)
}

// Matches reports whether the concrete topic other matches the filter t
func (t Topic) Matches(other Topic) bool {
	if len(t) != len(other) {
		return false
	}
	for i, level := range t {
		if level != Wildcard && level != other[i] {
			return false
		}
	}
	return true
}

// SplitTopic turns a driver topic back into levels
func SplitTopic(topic, separator string) Topic {
	return strings.Split(topic, separator)
}

// MessageHandler is invoked for every message received on a subscription
type MessageHandler func(topic Topic, payload []byte)

// ConnectionListener is notified when the broker connection is lost or restored
// after a successful Connect.
type ConnectionListener func(connected bool)

// Broker is a connection to a publish/subscribe broker.
type Broker interface {
	// Connect opens the connection. listener is called on later connectivity changes.
	Connect(ctx context.Context, listener ConnectionListener) error
	// Subscribe delivers to handler every message published on a topic matching filter.
	Subscribe(ctx context.Context, filter Topic, handler MessageHandler) error
	// Publish sends payload on topic.
	Publish(ctx context.Context, topic Topic, payload []byte) error
	// Close releases the subscriptions and the connection.
	Close(ctx context.Context) error
}
