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

package codec

import (
	"strings"
)

// Category tells how a format lays out bytes on the wire.
type Category int

const (
	// UnknownCategory is the category of a format the codec cannot handle
	UnknownCategory Category = iota
	// Textual formats produce human-readable documents
	Textual
	// Binary formats produce compact byte sequences
	Binary
)

// String returns the category name
func (c Category) String() string {
	switch c {
	case Textual:
		return "textual"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Format is the wire format used to encode envelopes and the values they carry.
// Every device of a deployment must use the same Format.
type Format int

const (
	// FormatProtobuf encodes envelopes as protocol buffers messages.
	// Values must be protocol buffers messages or scalars.
	FormatProtobuf Format = iota
	// FormatJSON encodes envelopes as JSON documents.
	FormatJSON
	// FormatCBOR encodes envelopes as CBOR (RFC 8949).
	FormatCBOR
	// FormatMsgpack encodes envelopes as MessagePack.
	FormatMsgpack
)

// String returns the format name
func (f Format) String() string {
	switch f {
	case FormatProtobuf:
		return "protobuf"
	case FormatJSON:
		return "json"
	case FormatCBOR:
		return "cbor"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// Category returns the category of the format
func (f Format) Category() Category {
	switch f {
	case FormatJSON:
		return Textual
	case FormatProtobuf, FormatCBOR, FormatMsgpack:
		return Binary
	default:
		return UnknownCategory
	}
}

// ParseFormat returns the Format matching the given name.
// It returns false when the name is unknown.
func ParseFormat(name string) (Format, bool) {
	for _, format := range []Format{FormatProtobuf, FormatJSON, FormatCBOR, FormatMsgpack} {
		if strings.EqualFold(format.String(), name) {
			return format, true
		}
	}
	return Format(-1), false
}
