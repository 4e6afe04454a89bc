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

package errors

import (
	"errors"
	"fmt"

	"github.com/fieldmesh/mailbox/envelope"
)

var (
	// ErrTransportUnavailable is returned when the underlying medium cannot be reached:
	// the broker refuses the connection, the radio is missing or the network is down.
	// The failure is transient and the operation can be retried.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrMalformedMessage is returned when received bytes do not parse as an envelope
	// for the configured wire format.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrTransportClosed is returned when an operation is attempted after the transport
	// or the mailbox has been closed.
	ErrTransportClosed = errors.New("transport is closed")

	// ErrUnsupportedCodec is returned at construction time when the requested wire format
	// is neither textual nor binary.
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrNotConnected is returned when a send is attempted while the transport is not
	// connected and cannot queue the payload.
	ErrNotConnected = errors.New("transport is not connected")

	// ErrInvalidRetentionWindow is returned when the retention window is not a positive duration.
	ErrInvalidRetentionWindow = errors.New("retention window must be greater than zero")

	// ErrUnsupportedValue is returned when a value cannot be represented in the configured format.
	ErrUnsupportedValue = errors.New("unsupported value type")

	// ErrAlreadyStarted is returned when Start is called on a running transport.
	ErrAlreadyStarted = errors.New("already started")

	// ErrQueueFull indicates that a bounded queue rejected an item.
	ErrQueueFull = errors.New("queue is full")

	// ErrInvalidNeighborID is returned when a device identifier cannot be used on a medium.
	ErrInvalidNeighborID = errors.New("invalid neighbor id")
)

// NewErrTransportUnavailable wraps a base error with ErrTransportUnavailable.
func NewErrTransportUnavailable(err error) error {
	return errors.Join(ErrTransportUnavailable, err)
}

// NewErrMalformedMessage wraps a base error with ErrMalformedMessage.
func NewErrMalformedMessage(err error) error {
	return errors.Join(ErrMalformedMessage, err)
}

// NewErrUnsupportedCodec formats an ErrUnsupportedCodec with the given format name.
func NewErrUnsupportedCodec(format string) error {
	return fmt.Errorf("format=(%s) %w", format, ErrUnsupportedCodec)
}

// NewErrUnsupportedValue formats an ErrUnsupportedValue with the given value.
func NewErrUnsupportedValue(value any) error {
	return fmt.Errorf("type=(%T) %w", value, ErrUnsupportedValue)
}

// NewErrInvalidNeighborID formats an ErrInvalidNeighborID with the given id.
func NewErrInvalidNeighborID(id envelope.NeighborID) error {
	return fmt.Errorf("id=(%s) %w", id, ErrInvalidNeighborID)
}

// DeserializationError is returned when a value carried by a neighbor's envelope
// cannot be decoded into the requested type.
type DeserializationError struct {
	// SenderID is the neighbor that sent the value
	SenderID envelope.NeighborID
	// Path is the path the value was published at
	Path envelope.Path
	err  error
}

// enforce compilation error
var _ error = (*DeserializationError)(nil)

// NewDeserializationError creates an instance of DeserializationError
func NewDeserializationError(sender envelope.NeighborID, path envelope.Path, err error) *DeserializationError {
	return &DeserializationError{
		SenderID: sender,
		Path:     path,
		err:      err,
	}
}

// Error implements the standard error interface
func (e *DeserializationError) Error() string {
	return fmt.Sprintf("cannot decode value from neighbor=(%s) at path=(%s): %v", e.SenderID, e.Path, e.err)
}

// Unwrap returns the underlying error
func (e *DeserializationError) Unwrap() error {
	return e.err
}

// Is reports a DeserializationError as a malformed message.
func (e *DeserializationError) Is(target error) bool {
	return target == ErrMalformedMessage
}
