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

package store

import (
	"maps"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/fieldmesh/mailbox/envelope"
)

// Snapshot is a point-in-time copy of the live entries of a Store.
// It does not change when the Store does.
type Snapshot struct {
	takenAt time.Time
	entries map[envelope.NeighborID]Entry
}

// TakenAt returns the instant the snapshot was taken at
func (s *Snapshot) TakenAt() time.Time {
	return s.takenAt
}

// Neighbors returns the set of neighbors with a live entry
func (s *Snapshot) Neighbors() mapset.Set[envelope.NeighborID] {
	neighbors := mapset.NewSet[envelope.NeighborID]()
	for sender := range s.entries {
		neighbors.Add(sender)
	}
	return neighbors
}

// SortedNeighbors returns the neighbors with a live entry in a stable order
func (s *Snapshot) SortedNeighbors() []envelope.NeighborID {
	return slices.Sorted(maps.Keys(s.entries))
}

// Len returns the number of neighbors in the snapshot
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Entry returns the entry of the given neighbor
func (s *Snapshot) Entry(sender envelope.NeighborID) (Entry, bool) {
	entry, ok := s.entries[sender]
	return entry, ok
}

// Entries returns every entry of the snapshot
func (s *Snapshot) Entries() []Entry {
	entries := make([]Entry, 0, len(s.entries))
	for _, sender := range s.SortedNeighbors() {
		entries = append(entries, s.entries[sender])
	}
	return entries
}

// PayloadsAt returns, for every neighbor that published a value at path, the
// encoded value. Neighbors that did not publish at path are left out.
func (s *Snapshot) PayloadsAt(path envelope.Path) map[envelope.NeighborID][]byte {
	payloads := make(map[envelope.NeighborID][]byte)
	for sender, entry := range s.entries {
		if payload, ok := entry.Message.Get(path); ok {
			payloads[sender] = payload
		}
	}
	return payloads
}
