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
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/fieldmesh/mailbox/codec"
	"github.com/fieldmesh/mailbox/envelope"
	imetric "github.com/fieldmesh/mailbox/internal/metric"
	"github.com/fieldmesh/mailbox/log"
	"github.com/fieldmesh/mailbox/store"
)

// Inbound is what the neighbors sent within the retention window, as seen
// at the time it was taken. Later arrivals do not change it.
type Inbound struct {
	snapshot *store.Snapshot
	codec    *codec.Codec
	logger   log.Logger
	metrics  *imetric.MailboxMetric
}

// TakenAt returns the time the inbound was taken
func (i *Inbound) TakenAt() time.Time {
	return i.snapshot.TakenAt()
}

// Neighbors returns the neighbors with a retained envelope
func (i *Inbound) Neighbors() mapset.Set[envelope.NeighborID] {
	return i.snapshot.Neighbors()
}

// SortedNeighbors returns the neighbors in a stable order
func (i *Inbound) SortedNeighbors() []envelope.NeighborID {
	return i.snapshot.SortedNeighbors()
}

// Len returns the number of neighbors
func (i *Inbound) Len() int {
	return i.snapshot.Len()
}

// Message returns the envelope retained for neighbor
func (i *Inbound) Message(neighbor envelope.NeighborID) (envelope.Message, bool) {
	entry, ok := i.snapshot.Entry(neighbor)
	if !ok {
		return envelope.Message{}, false
	}
	return entry.Message, true
}

// RawAt returns the undecoded payloads published at path, per neighbor
func (i *Inbound) RawAt(path envelope.Path) map[envelope.NeighborID][]byte {
	return i.snapshot.PayloadsAt(path)
}

// DataAt decodes the values published at path as T, per neighbor.
//
// A neighbor whose value cannot be decoded is left out of the result and
// reported in the returned error as a *errors.DeserializationError; the
// other neighbors are still returned.
func DataAt[T any](inbound *Inbound, path envelope.Path) (map[envelope.NeighborID]T, error) {
	values := make(map[envelope.NeighborID]T)
	var errs []error
	for _, entry := range inbound.snapshot.Entries() {
		value, ok, err := codec.DecodeValueAt[T](inbound.codec, entry.Message, path)
		if err != nil {
			inbound.metrics.RecordDecodeFailure(context.Background())
			inbound.logger.Warnf("skipping neighbor=(%s) at path=(%s): %v", entry.SenderID, path, err)
			errs = append(errs, err)
			continue
		}
		if ok {
			values[entry.SenderID] = value
		}
	}
	return values, errors.Join(errs...)
}
