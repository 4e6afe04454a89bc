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
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/fieldmesh/mailbox/envelope"
	gerrors "github.com/fieldmesh/mailbox/errors"
)

// DefaultMaxMessageSize is the largest envelope Decode accepts by default
const DefaultMaxMessageSize = 1 << 20

// Codec converts envelopes and the values they carry to and from bytes in a
// single wire format. A Codec is immutable after construction and safe for
// concurrent use.
type Codec struct {
	format         Format
	compression    Compression
	maxMessageSize int

	wire       wireFormat
	compressor compressor
}

// New creates a Codec for the given format. It fails with ErrUnsupportedCodec when
// the format is neither textual nor binary, or when the options are invalid.
func New(format Format, opts ...Option) (*Codec, error) {
	codec := &Codec{
		format:         format,
		compression:    NoCompression,
		maxMessageSize: DefaultMaxMessageSize,
	}

	for _, opt := range opts {
		opt.Apply(codec)
	}

	if codec.maxMessageSize <= 0 {
		return nil, errors.Join(gerrors.NewErrUnsupportedCodec(format.String()), errors.New("max message size must be greater than zero"))
	}

	switch format.Category() {
	case Textual, Binary:
	default:
		return nil, gerrors.NewErrUnsupportedCodec(format.String())
	}

	switch format {
	case FormatJSON:
		codec.wire = jsonFormat{}
	case FormatProtobuf:
		codec.wire = newProtobufFormat()
	case FormatCBOR:
		wire, err := newCBORFormat()
		if err != nil {
			return nil, errors.Join(gerrors.NewErrUnsupportedCodec(format.String()), err)
		}
		codec.wire = wire
	case FormatMsgpack:
		codec.wire = msgpackFormat{}
	}

	compressor, err := newCompressor(codec.compression)
	if err != nil {
		return nil, errors.Join(gerrors.NewErrUnsupportedCodec(format.String()), err)
	}
	codec.compressor = compressor
	return codec, nil
}

// Format returns the wire format
func (c *Codec) Format() Format {
	return c.format
}

// Compression returns the compression applied to envelopes
func (c *Codec) Compression() Compression {
	return c.compression
}

// Encode converts the given envelope into bytes
func (c *Codec) Encode(msg envelope.Message) ([]byte, error) {
	data, err := c.wire.marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	if c.compressor == nil {
		return data, nil
	}

	compressed, err := c.compressor.compress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to compress envelope: %w", err)
	}
	return compressed, nil
}

// Decode converts bytes produced by Encode back into an envelope.
// It fails with ErrMalformedMessage when the bytes cannot be parsed or carry no sender.
func (c *Codec) Decode(data []byte) (envelope.Message, error) {
	if len(data) == 0 {
		return envelope.Message{}, gerrors.NewErrMalformedMessage(errors.New("empty payload"))
	}

	if len(data) > c.maxMessageSize {
		return envelope.Message{}, gerrors.NewErrMalformedMessage(fmt.Errorf("payload size exceeds %d bytes", c.maxMessageSize))
	}

	if c.compressor != nil {
		decompressed, err := c.compressor.decompress(data, c.maxMessageSize)
		if err != nil {
			return envelope.Message{}, gerrors.NewErrMalformedMessage(err)
		}
		data = decompressed
	}

	msg, err := c.wire.unmarshal(data)
	if err != nil {
		return envelope.Message{}, gerrors.NewErrMalformedMessage(err)
	}

	if msg.SenderID.IsZero() {
		return envelope.Message{}, gerrors.NewErrMalformedMessage(errors.New("envelope carries no sender"))
	}
	return msg, nil
}

// EncodeValue converts a single value into bytes
func (c *Codec) EncodeValue(value any) ([]byte, error) {
	data, err := c.wire.marshalValue(value)
	if err != nil {
		if errors.Is(err, gerrors.ErrUnsupportedValue) {
			return nil, err
		}
		return nil, errors.Join(gerrors.NewErrUnsupportedValue(value), err)
	}
	return data, nil
}

// EncodeValues builds the wire envelope sent by sender out of the given typed values.
// All paths are attempted; failures are combined and reported by path.
func (c *Codec) EncodeValues(sender envelope.NeighborID, values map[envelope.Path]any) (envelope.Message, error) {
	msg := envelope.NewMessage(sender)
	var errs []error
	for _, path := range slices.Sorted(maps.Keys(values)) {
		payload, err := c.EncodeValue(values[path])
		if err != nil {
			errs = append(errs, fmt.Errorf("path=(%s): %w", path, err))
			continue
		}
		msg.SharedData[path] = payload
	}
	return msg, errors.Join(errs...)
}

// DecodeValue converts bytes produced by EncodeValue into a value of type T.
func DecodeValue[T any](c *Codec, data []byte) (T, error) {
	var value T
	if err := c.wire.unmarshalValue(data, &value); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// DecodeValueAt decodes the value published at path in msg.
// It returns false when the path is absent. Decoding failures are reported
// as a *errors.DeserializationError naming the sender and the path.
func DecodeValueAt[T any](c *Codec, msg envelope.Message, path envelope.Path) (T, bool, error) {
	var zero T
	payload, ok := msg.Get(path)
	if !ok {
		return zero, false, nil
	}

	value, err := DecodeValue[T](c, payload)
	if err != nil {
		return zero, true, gerrors.NewDeserializationError(msg.SenderID, path, err)
	}
	return value, true, nil
}
