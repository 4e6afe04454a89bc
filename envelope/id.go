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
	"strconv"
)

// NeighborID identifies a device in the network. It is opaque to the mailbox:
// only equality matters. It must stay stable for a device's whole session.
type NeighborID string

// IntID builds a NeighborID out of an integer device number.
func IntID(n int) NeighborID {
	return NeighborID(strconv.Itoa(n))
}

// String returns the string form of the id
func (id NeighborID) String() string {
	return string(id)
}

// Int parses the id back into an integer device number.
func (id NeighborID) Int() (int, error) {
	return strconv.Atoi(string(id))
}

// IsZero reports whether the id is empty
func (id NeighborID) IsZero() bool {
	return id == ""
}
