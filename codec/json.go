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
	"encoding/json"

	"github.com/fieldmesh/mailbox/envelope"
)

// jsonFormat writes envelopes as JSON documents. Payloads are base64 strings.
type jsonFormat struct{}

var _ wireFormat = jsonFormat{}

func (jsonFormat) marshal(msg envelope.Message) ([]byte, error) {
	return json.Marshal(toWire(msg))
}

func (jsonFormat) unmarshal(data []byte) (envelope.Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return envelope.Message{}, err
	}
	return fromWire(wire), nil
}

func (jsonFormat) marshalValue(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (jsonFormat) unmarshalValue(data []byte, target any) error {
	return json.Unmarshal(data, target)
}
