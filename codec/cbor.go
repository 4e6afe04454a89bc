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
	"github.com/fxamacker/cbor/v2"

	"github.com/fieldmesh/mailbox/envelope"
)

var (
	cborEncOpts = cbor.EncOptions{
		Sort:        cbor.SortCoreDeterministic,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeUnixDynamic,
	}
	cborDecOpts = cbor.DecOptions{
		MaxNestedLevels: 64,
		IndefLength:     cbor.IndefLengthForbidden,
		UTF8:            cbor.UTF8RejectInvalid,
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
	}
)

// cborFormat writes envelopes as CBOR maps. Map keys are sorted so that
// equal envelopes always produce equal bytes.
type cborFormat struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

var _ wireFormat = (*cborFormat)(nil)

func newCBORFormat() (*cborFormat, error) {
	encMode, err := cborEncOpts.EncMode()
	if err != nil {
		return nil, err
	}
	decMode, err := cborDecOpts.DecMode()
	if err != nil {
		return nil, err
	}
	return &cborFormat{encMode: encMode, decMode: decMode}, nil
}

func (c *cborFormat) marshal(msg envelope.Message) ([]byte, error) {
	return c.encMode.Marshal(toWire(msg))
}

func (c *cborFormat) unmarshal(data []byte) (envelope.Message, error) {
	var wire wireMessage
	if err := c.decMode.Unmarshal(data, &wire); err != nil {
		return envelope.Message{}, err
	}
	return fromWire(wire), nil
}

func (c *cborFormat) marshalValue(value any) ([]byte, error) {
	return c.encMode.Marshal(value)
}

func (c *cborFormat) unmarshalValue(data []byte, target any) error {
	return c.decMode.Unmarshal(data, target)
}
