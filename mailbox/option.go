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
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/fieldmesh/mailbox/codec"
	"github.com/fieldmesh/mailbox/log"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*Mailbox)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Mailbox)

// Apply applies the option
func (f OptionFunc) Apply(m *Mailbox) {
	f(m)
}

// WithCodec sets the codec. Defaults to the protobuf format without compression.
func WithCodec(codec *codec.Codec) Option {
	return OptionFunc(func(m *Mailbox) {
		m.codec = codec
	})
}

// WithRetentionWindow sets how long a neighbor envelope is retained. Defaults to 5s.
func WithRetentionWindow(window time.Duration) Option {
	return OptionFunc(func(m *Mailbox) {
		m.retention = window
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(m *Mailbox) {
		m.logger = logger
	})
}

// WithClock sets the clock used to timestamp arrivals and take snapshots
func WithClock(clock func() time.Time) Option {
	return OptionFunc(func(m *Mailbox) {
		m.clock = clock
	})
}

// WithInboundQueueSize sets the number of arrivals waiting to be decoded.
// Arrivals on a full queue are dropped. Defaults to 256.
func WithInboundQueueSize(size int) Option {
	return OptionFunc(func(m *Mailbox) {
		m.queueSize = size
	})
}

// WithSendTimeout bounds every hand over to the transport. Defaults to 5s.
func WithSendTimeout(timeout time.Duration) Option {
	return OptionFunc(func(m *Mailbox) {
		m.sendTimeout = timeout
	})
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return OptionFunc(func(m *Mailbox) {
		m.meterProvider = provider
	})
}
