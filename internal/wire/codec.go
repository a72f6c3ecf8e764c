// SPDX-License-Identifier: MIT

// Package wire implements the UDP message protocol spoken with the
// control application: OSC 1.0 style datagrams with a padded address
// pattern, a type tag string and big-endian int32/float32/string
// arguments.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MaxDatagramSize bounds incoming datagrams. Control messages are tiny;
// anything larger is not ours.
const MaxDatagramSize = 2048

// Codec errors. Decode wraps these with positional context.
var (
	ErrBadAddress      = errors.New("address must start with '/'")
	ErrBadTypeTag      = errors.New("type tag string must start with ','")
	ErrUnsupportedType = errors.New("unsupported argument type")
	ErrTruncated       = errors.New("truncated message")
)

// Message is one wire datagram: an address pattern plus typed
// arguments. Supported argument types are int32, float32 and string.
type Message struct {
	Addr string
	Args []any
}

// NewMessage builds a message for addr with the given arguments.
func NewMessage(addr string, args ...any) Message {
	return Message{Addr: addr, Args: args}
}

// Int returns argument i as an int32.
func (m Message) Int(i int) (int32, bool) {
	if i < 0 || i >= len(m.Args) {
		return 0, false
	}
	v, ok := m.Args[i].(int32)
	return v, ok
}

// Float returns argument i as a float32.
func (m Message) Float(i int) (float32, bool) {
	if i < 0 || i >= len(m.Args) {
		return 0, false
	}
	v, ok := m.Args[i].(float32)
	return v, ok
}

// String returns argument i as a string.
func (m Message) String(i int) (string, bool) {
	if i < 0 || i >= len(m.Args) {
		return "", false
	}
	v, ok := m.Args[i].(string)
	return v, ok
}

// Encode serializes the message. Addresses must start with '/' and all
// arguments must be of a supported type.
func (m Message) Encode() ([]byte, error) {
	if len(m.Addr) == 0 || m.Addr[0] != '/' {
		return nil, fmt.Errorf("encode %q: %w", m.Addr, ErrBadAddress)
	}

	buf := new(bytes.Buffer)
	writePaddedString(buf, m.Addr)

	// Type tag string: ',' followed by one tag per argument.
	tags := make([]byte, 0, len(m.Args)+1)
	tags = append(tags, ',')
	for _, arg := range m.Args {
		switch arg.(type) {
		case int32:
			tags = append(tags, 'i')
		case float32:
			tags = append(tags, 'f')
		case string:
			tags = append(tags, 's')
		default:
			return nil, fmt.Errorf("encode %s: %w (%T)", m.Addr, ErrUnsupportedType, arg)
		}
	}
	writePaddedString(buf, string(tags))

	var err error
	for _, arg := range m.Args {
		switch v := arg.(type) {
		case int32:
			err = binary.Write(buf, binary.BigEndian, v)
		case float32:
			err = binary.Write(buf, binary.BigEndian, math.Float32bits(v))
		case string:
			writePaddedString(buf, v)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", m.Addr, err)
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a datagram into a Message.
func Decode(data []byte) (Message, error) {
	addr, off, err := readPaddedString(data, 0)
	if err != nil {
		return Message{}, fmt.Errorf("decode address: %w", err)
	}
	if len(addr) == 0 || addr[0] != '/' {
		return Message{}, fmt.Errorf("decode %q: %w", addr, ErrBadAddress)
	}

	tags, off, err := readPaddedString(data, off)
	if err != nil {
		return Message{}, fmt.Errorf("decode %s type tags: %w", addr, err)
	}
	if len(tags) == 0 || tags[0] != ',' {
		return Message{}, fmt.Errorf("decode %s: %w", addr, ErrBadTypeTag)
	}

	msg := Message{Addr: addr}
	if len(tags) > 1 {
		msg.Args = make([]any, 0, len(tags)-1)
	}
	for _, tag := range tags[1:] {
		switch tag {
		case 'i':
			if off+4 > len(data) {
				return Message{}, fmt.Errorf("decode %s int32: %w", addr, ErrTruncated)
			}
			msg.Args = append(msg.Args, int32(binary.BigEndian.Uint32(data[off:])))
			off += 4
		case 'f':
			if off+4 > len(data) {
				return Message{}, fmt.Errorf("decode %s float32: %w", addr, ErrTruncated)
			}
			msg.Args = append(msg.Args, math.Float32frombits(binary.BigEndian.Uint32(data[off:])))
			off += 4
		case 's':
			var s string
			s, off, err = readPaddedString(data, off)
			if err != nil {
				return Message{}, fmt.Errorf("decode %s string: %w", addr, err)
			}
			msg.Args = append(msg.Args, s)
		default:
			return Message{}, fmt.Errorf("decode %s tag %q: %w", addr, tag, ErrUnsupportedType)
		}
	}

	return msg, nil
}

// writePaddedString writes s NUL-terminated and padded with NULs to a
// 4-byte boundary.
func writePaddedString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}

// readPaddedString reads a NUL-terminated padded string starting at
// off and returns it with the offset of the next field.
func readPaddedString(data []byte, off int) (string, int, error) {
	if off >= len(data) {
		return "", 0, ErrTruncated
	}
	idx := bytes.IndexByte(data[off:], 0)
	if idx < 0 {
		return "", 0, ErrTruncated
	}
	s := string(data[off : off+idx])

	// Consume the terminator plus padding to the 4-byte boundary.
	n := idx + 1
	if rem := n % 4; rem != 0 {
		n += 4 - rem
	}
	if off+n > len(data) {
		return "", 0, ErrTruncated
	}
	return s, off + n, nil
}
