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

// Outbound is the typed form of an envelope built by the local round. Each path
// has a default value sent to every neighbor, and may carry per-neighbor overrides
// when a value depends on its receiver.
//
// An Outbound must not be modified once handed to the mailbox.
type Outbound struct {
	defaults  map[Path]any
	overrides map[NeighborID]map[Path]any
}

// NewOutbound creates an empty Outbound
func NewOutbound() *Outbound {
	return &Outbound{
		defaults:  make(map[Path]any),
		overrides: make(map[NeighborID]map[Path]any),
	}
}

// Set sets the value shared with every neighbor at the given path.
func (o *Outbound) Set(path Path, value any) *Outbound {
	if o.defaults == nil {
		o.defaults = make(map[Path]any)
	}
	o.defaults[path] = value
	return o
}

// SetFor sets the value shared with the given neighbor only.
// It takes precedence over the default value at the same path.
func (o *Outbound) SetFor(neighbor NeighborID, path Path, value any) *Outbound {
	if o.overrides == nil {
		o.overrides = make(map[NeighborID]map[Path]any)
	}
	values, ok := o.overrides[neighbor]
	if !ok {
		values = make(map[Path]any)
		o.overrides[neighbor] = values
	}
	values[path] = value
	return o
}

// Defaults returns the values shared with every neighbor.
func (o *Outbound) Defaults() map[Path]any {
	values := make(map[Path]any, len(o.defaults))
	maps.Copy(values, o.defaults)
	return values
}

// PrepareFor returns the values to send to the given receiver: the defaults with
// the receiver's overrides applied on top.
func (o *Outbound) PrepareFor(receiver NeighborID) map[Path]any {
	values := make(map[Path]any, len(o.defaults))
	maps.Copy(values, o.defaults)
	maps.Copy(values, o.overrides[receiver])
	return values
}

// HasOverrides reports whether some values depend on the receiver.
func (o *Outbound) HasOverrides() bool {
	return len(o.overrides) > 0
}

// Paths returns every path present in the envelope in a stable order.
func (o *Outbound) Paths() []Path {
	paths := slices.Collect(maps.Keys(o.defaults))
	for _, values := range o.overrides {
		for path := range values {
			if _, ok := o.defaults[path]; !ok && !slices.Contains(paths, path) {
				paths = append(paths, path)
			}
		}
	}
	slices.Sort(paths)
	return paths
}

// IsEmpty reports whether the envelope carries no value
func (o *Outbound) IsEmpty() bool {
	return len(o.defaults) == 0 && len(o.overrides) == 0
}
