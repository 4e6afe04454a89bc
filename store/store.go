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

// Package store keeps the latest envelope received from every neighbor and
// forgets the ones that are older than a retention window.
package store

import (
	"sync"
	"time"

	"github.com/fieldmesh/mailbox/envelope"
	gerrors "github.com/fieldmesh/mailbox/errors"
)

// Entry is the retained envelope of one neighbor
type Entry struct {
	SenderID   envelope.NeighborID
	Message    envelope.Message
	ReceivedAt time.Time
}

// Store retains the most recent envelope of every sender. A later arrival
// from the same sender replaces the previous one, whatever their contents.
//
// Expired entries are removed lazily, when a snapshot is taken: an entry
// received at t is stale at now when now - t >= window.
//
// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[envelope.NeighborID]Entry
}

// New creates a Store with the given retention window
func New(window time.Duration) (*Store, error) {
	if window <= 0 {
		return nil, gerrors.ErrInvalidRetentionWindow
	}
	return &Store{
		window:  window,
		entries: make(map[envelope.NeighborID]Entry),
	}, nil
}

// Window returns the retention window
func (s *Store) Window() time.Duration {
	return s.window
}

// Put records msg as the latest envelope of sender, received at now.
func (s *Store) Put(sender envelope.NeighborID, msg envelope.Message, now time.Time) {
	s.mu.Lock()
	s.entries[sender] = Entry{
		SenderID:   sender,
		Message:    msg,
		ReceivedAt: now,
	}
	s.mu.Unlock()
}

// EvictExpired removes the entries that are stale at now and
// returns how many were removed.
func (s *Store) EvictExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evict(now)
}

// Snapshot evicts the stale entries then returns a copy of the remaining ones.
// Both steps happen under the same lock so a snapshot never mixes states.
func (s *Store) Snapshot(now time.Time) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(now)
	entries := make(map[envelope.NeighborID]Entry, len(s.entries))
	for sender, entry := range s.entries {
		entries[sender] = entry
	}
	return &Snapshot{takenAt: now, entries: entries}
}

// Len returns the number of retained entries, stale ones included
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear removes every entry
func (s *Store) Clear() {
	s.mu.Lock()
	clear(s.entries)
	s.mu.Unlock()
}

// evict must be called with the lock held
func (s *Store) evict(now time.Time) int {
	evicted := 0
	for sender, entry := range s.entries {
		if now.Sub(entry.ReceivedAt) >= s.window {
			delete(s.entries, sender)
			evicted++
		}
	}
	return evicted
}
