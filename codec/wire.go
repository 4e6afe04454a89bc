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
	"github.com/fieldmesh/mailbox/envelope"
)

// wireFormat is implemented by every supported format
type wireFormat interface {
	marshal(msg envelope.Message) ([]byte, error)
	unmarshal(data []byte) (envelope.Message, error)
	marshalValue(value any) ([]byte, error)
	// unmarshalValue decodes data into target which is always a non-nil pointer
	unmarshalValue(data []byte, target any) error
}

// wireMessage is the document shape shared by the reflection based formats
type wireMessage struct {
	SenderID   string            `json:"senderId" cbor:"senderId" msgpack:"senderId"`
	SharedData map[string][]byte `json:"sharedData" cbor:"sharedData" msgpack:"sharedData"`
}

func toWire(msg envelope.Message) wireMessage {
	wire := wireMessage{
		SenderID:   msg.SenderID.String(),
		SharedData: make(map[string][]byte, len(msg.SharedData)),
	}
	for path, payload := range msg.SharedData {
		wire.SharedData[path.String()] = payload
	}
	return wire
}

func fromWire(wire wireMessage) envelope.Message {
	msg := envelope.Message{
		SenderID:   envelope.NeighborID(wire.SenderID),
		SharedData: make(map[envelope.Path][]byte, len(wire.SharedData)),
	}
	for path, payload := range wire.SharedData {
		msg.SharedData[envelope.Path(path)] = payload
	}
	return msg
}
