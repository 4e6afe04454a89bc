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
	"reflect"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fieldmesh/mailbox/envelope"
	gerrors "github.com/fieldmesh/mailbox/errors"
)

// Envelope layout, compatible with the following schema:
//
//	message Envelope {
//	  string sender_id = 1;
//	  map<string, bytes> shared_data = 2;
//	}
const (
	fieldSenderID   protowire.Number = 1
	fieldSharedData protowire.Number = 2
	fieldEntryKey   protowire.Number = 1
	fieldEntryValue protowire.Number = 2
)

var protoMessageType = reflect.TypeFor[proto.Message]()

// protobufFormat writes envelopes as protocol buffers. Values must either be
// proto messages or scalars, the latter being carried by the well-known
// wrapper types.
type protobufFormat struct {
	marshalOpts proto.MarshalOptions
}

var _ wireFormat = protobufFormat{}

func newProtobufFormat() protobufFormat {
	return protobufFormat{marshalOpts: proto.MarshalOptions{Deterministic: true}}
}

func (protobufFormat) marshal(msg envelope.Message) ([]byte, error) {
	var out []byte
	if !msg.SenderID.IsZero() {
		out = protowire.AppendTag(out, fieldSenderID, protowire.BytesType)
		out = protowire.AppendString(out, msg.SenderID.String())
	}

	for _, path := range msg.Paths() {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldEntryKey, protowire.BytesType)
		entry = protowire.AppendString(entry, path.String())
		entry = protowire.AppendTag(entry, fieldEntryValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, msg.SharedData[path])

		out = protowire.AppendTag(out, fieldSharedData, protowire.BytesType)
		out = protowire.AppendBytes(out, entry)
	}
	return out, nil
}

func (protobufFormat) unmarshal(data []byte) (envelope.Message, error) {
	msg := envelope.NewMessage("")
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return envelope.Message{}, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldSenderID && typ == protowire.BytesType:
			sender, n := protowire.ConsumeString(data)
			if n < 0 {
				return envelope.Message{}, protowire.ParseError(n)
			}
			msg.SenderID = envelope.NeighborID(sender)
			data = data[n:]
		case num == fieldSharedData && typ == protowire.BytesType:
			entry, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return envelope.Message{}, protowire.ParseError(n)
			}
			path, payload, err := unmarshalEntry(entry)
			if err != nil {
				return envelope.Message{}, err
			}
			msg.SharedData[path] = payload
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return envelope.Message{}, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return msg, nil
}

func unmarshalEntry(data []byte) (envelope.Path, []byte, error) {
	var (
		path    envelope.Path
		payload = []byte{}
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldEntryKey && typ == protowire.BytesType:
			key, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", nil, protowire.ParseError(n)
			}
			path = envelope.Path(key)
			data = data[n:]
		case num == fieldEntryValue && typ == protowire.BytesType:
			value, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", nil, protowire.ParseError(n)
			}
			payload = append([]byte{}, value...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return path, payload, nil
}

func (f protobufFormat) marshalValue(value any) ([]byte, error) {
	var message proto.Message
	switch v := value.(type) {
	case proto.Message:
		message = v
	case bool:
		message = wrapperspb.Bool(v)
	case string:
		message = wrapperspb.String(v)
	case []byte:
		message = wrapperspb.Bytes(v)
	case int:
		message = wrapperspb.Int64(int64(v))
	case int32:
		message = wrapperspb.Int32(v)
	case int64:
		message = wrapperspb.Int64(v)
	case uint:
		message = wrapperspb.UInt64(uint64(v))
	case uint32:
		message = wrapperspb.UInt32(v)
	case uint64:
		message = wrapperspb.UInt64(v)
	case float32:
		message = wrapperspb.Float(v)
	case float64:
		message = wrapperspb.Double(v)
	default:
		return nil, gerrors.NewErrUnsupportedValue(value)
	}
	return f.marshalOpts.Marshal(message)
}

func (protobufFormat) unmarshalValue(data []byte, target any) error {
	switch t := target.(type) {
	case *bool:
		wrapper := new(wrapperspb.BoolValue)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = wrapper.GetValue()
	case *string:
		wrapper := new(wrapperspb.StringValue)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = wrapper.GetValue()
	case *[]byte:
		wrapper := new(wrapperspb.BytesValue)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = wrapper.GetValue()
	case *int:
		wrapper := new(wrapperspb.Int64Value)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = int(wrapper.GetValue())
	case *int32:
		wrapper := new(wrapperspb.Int32Value)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = wrapper.GetValue()
	case *int64:
		wrapper := new(wrapperspb.Int64Value)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = wrapper.GetValue()
	case *uint:
		wrapper := new(wrapperspb.UInt64Value)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = uint(wrapper.GetValue())
	case *uint32:
		wrapper := new(wrapperspb.UInt32Value)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = wrapper.GetValue()
	case *uint64:
		wrapper := new(wrapperspb.UInt64Value)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = wrapper.GetValue()
	case *float32:
		wrapper := new(wrapperspb.FloatValue)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = wrapper.GetValue()
	case *float64:
		wrapper := new(wrapperspb.DoubleValue)
		if err := unmarshalStrict(data, wrapper); err != nil {
			return err
		}
		*t = wrapper.GetValue()
	default:
		return unmarshalProtoMessage(data, target)
	}
	return nil
}

// unmarshalStrict fails when data carries fields the message does not
// declare, or declares with another wire type. proto.Unmarshal keeps
// those as unknown fields, which would decode a mismatched value as zero.
func unmarshalStrict(data []byte, message proto.Message) error {
	if err := proto.Unmarshal(data, message); err != nil {
		return err
	}

	if unknown := message.ProtoReflect().GetUnknown(); len(unknown) > 0 {
		return fmt.Errorf("type=(%s) does not match the encoded value: %d unknown bytes",
			message.ProtoReflect().Descriptor().FullName(), len(unknown))
	}
	return nil
}

// unmarshalProtoMessage handles targets of type *M where M is a generated
// message pointer type.
func unmarshalProtoMessage(data []byte, target any) error {
	value := reflect.ValueOf(target)
	if value.Kind() != reflect.Pointer || value.IsNil() {
		return errors.New("decode target must be a non-nil pointer")
	}

	elem := value.Elem()
	if elem.Kind() != reflect.Pointer || !elem.Type().Implements(protoMessageType) {
		return fmt.Errorf("type=(%s) %w", elem.Type(), gerrors.ErrUnsupportedValue)
	}

	message := reflect.New(elem.Type().Elem()).Interface().(proto.Message)
	if err := unmarshalStrict(data, message); err != nil {
		return err
	}
	elem.Set(reflect.ValueOf(message))
	return nil
}
