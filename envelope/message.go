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

package envelope

import (
	"maps"
	"slices"
)

// Message is the wire form of an envelope: the values a sender shares with one
// receiver, already encoded, keyed by path. Path keys are unique and their order
// carries no meaning.
type Message struct {
	// SenderID is the device that produced the message. Receivers key their
	// retained state by this id.
	SenderID NeighborID
	// SharedData holds the encoded value published at each path.
	SharedData map[Path][]byte
}

// NewMessage creates an empty Message for the given sender
func NewMessage(sender NeighborID) Message {
	return Message{
		SenderID:   sender,
		SharedData: make(map[Path][]byte),
	}
}

// Get returns the encoded value at the given path
func (m Message) Get(path Path) ([]byte, bool) {
	payload, ok := m.SharedData[path]
	return payload, ok
}

// Paths returns the message paths in a stable order
func (m Message) Paths() []Path {
	return slices.Sorted(maps.Keys(m.SharedData))
}

// Len returns the number of paths carried by the message
func (m Message) Len() int {
	return len(m.SharedData)
}

// Clone returns a deep copy of the message
func (m Message) Clone() Message {
	clone := Message{
		SenderID:   m.SenderID,
		SharedData: make(map[Path][]byte, len(m.SharedData)),
	}
	for path, payload := range m.SharedData {
		clone.SharedData[path] = slices.Clone(payload)
	}
	return clone
}

// Equal reports whether both messages carry the same sender and data
func (m Message) Equal(other Message) bool {
	if m.SenderID != other.SenderID || len(m.SharedData) != len(other.SharedData) {
		return false
	}
	for path, payload := range m.SharedData {
		otherPayload, ok := other.SharedData[path]
		if !ok || !slices.Equal(payload, otherPayload) {
			return false
		}
	}
	return true
}
