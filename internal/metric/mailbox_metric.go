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

package metric

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fieldmesh/mailbox"

// MailboxMetric holds the instruments of a mailbox
type MailboxMetric struct {
	received       metric.Int64Counter
	dropped        metric.Int64Counter
	malformed      metric.Int64Counter
	decodeFailures metric.Int64Counter
	sent           metric.Int64Counter
	sendFailures   metric.Int64Counter
	neighbors      metric.Int64ObservableGauge

	attributes metric.MeasurementOption
}

// NewMailboxMetric creates the mailbox instruments out of the given meter provider.
// Every measurement is tagged with the local device id.
func NewMailboxMetric(provider metric.MeterProvider, deviceID string) (*MailboxMetric, error) {
	meter := provider.Meter(instrumentationName)
	mailboxMetric := &MailboxMetric{
		attributes: metric.WithAttributes(attribute.String("device.id", deviceID)),
	}

	var err error
	if mailboxMetric.received, err = meter.Int64Counter(
		"mailbox_received_count",
		metric.WithDescription("Total number of envelopes stored from neighbors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create received instrument, %w", err)
	}

	if mailboxMetric.dropped, err = meter.Int64Counter(
		"mailbox_dropped_count",
		metric.WithDescription("Total number of arrivals dropped because the inbound queue was full"),
	); err != nil {
		return nil, fmt.Errorf("failed to create dropped instrument, %w", err)
	}

	if mailboxMetric.malformed, err = meter.Int64Counter(
		"mailbox_malformed_count",
		metric.WithDescription("Total number of arrivals that could not be decoded"),
	); err != nil {
		return nil, fmt.Errorf("failed to create malformed instrument, %w", err)
	}

	if mailboxMetric.decodeFailures, err = meter.Int64Counter(
		"mailbox_value_decode_failure_count",
		metric.WithDescription("Total number of neighbor values that could not be decoded"),
	); err != nil {
		return nil, fmt.Errorf("failed to create decodeFailures instrument, %w", err)
	}

	if mailboxMetric.sent, err = meter.Int64Counter(
		"mailbox_sent_count",
		metric.WithDescription("Total number of envelopes handed to the transport"),
	); err != nil {
		return nil, fmt.Errorf("failed to create sent instrument, %w", err)
	}

	if mailboxMetric.sendFailures, err = meter.Int64Counter(
		"mailbox_send_failure_count",
		metric.WithDescription("Total number of envelopes the transport failed to send"),
	); err != nil {
		return nil, fmt.Errorf("failed to create sendFailures instrument, %w", err)
	}

	if mailboxMetric.neighbors, err = meter.Int64ObservableGauge(
		"mailbox_neighbors",
		metric.WithDescription("Number of neighbors currently retained"),
	); err != nil {
		return nil, fmt.Errorf("failed to create neighbors instrument, %w", err)
	}

	return mailboxMetric, nil
}

// RecordReceived records an envelope stored from a neighbor
func (x *MailboxMetric) RecordReceived(ctx context.Context) {
	x.received.Add(ctx, 1, x.attributes)
}

// RecordDropped records an arrival dropped on a full queue
func (x *MailboxMetric) RecordDropped(ctx context.Context) {
	x.dropped.Add(ctx, 1, x.attributes)
}

// RecordMalformed records an arrival that could not be decoded
func (x *MailboxMetric) RecordMalformed(ctx context.Context) {
	x.malformed.Add(ctx, 1, x.attributes)
}

// RecordDecodeFailure records a neighbor value that could not be decoded
func (x *MailboxMetric) RecordDecodeFailure(ctx context.Context) {
	x.decodeFailures.Add(ctx, 1, x.attributes)
}

// RecordSent records an envelope handed to the transport
func (x *MailboxMetric) RecordSent(ctx context.Context) {
	x.sent.Add(ctx, 1, x.attributes)
}

// RecordSendFailure records an envelope the transport failed to send
func (x *MailboxMetric) RecordSendFailure(ctx context.Context) {
	x.sendFailures.Add(ctx, 1, x.attributes)
}

// ObserveNeighbors registers a callback reporting the number of retained neighbors.
// Unregister the returned registration on shutdown.
func (x *MailboxMetric) ObserveNeighbors(provider metric.MeterProvider, count func() int) (metric.Registration, error) {
	meter := provider.Meter(instrumentationName)
	return meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(x.neighbors, int64(count()), x.attributes)
		return nil
	}, x.neighbors)
}
