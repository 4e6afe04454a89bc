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

package mdns

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldmesh/mailbox/radio"
)

// A read is a 16 bytes characteristic uuid sent by the client, answered by a
// status byte, a 4 bytes big endian length and the value.
const (
	statusOK byte = iota
	statusUnknownCharacteristic

	headerSize = 5
)

var errUnknownCharacteristic = errors.New("unknown characteristic")

// characteristicServer answers reads of one characteristic over TCP
type characteristicServer struct {
	listener       net.Listener
	characteristic uuid.UUID
	read           radio.ReadFunc

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func serveCharacteristic(listener net.Listener, characteristic uuid.UUID, read radio.ReadFunc) *characteristicServer {
	server := &characteristicServer{
		listener:       listener,
		characteristic: characteristic,
		read:           read,
		conns:          make(map[net.Conn]struct{}),
	}

	server.wg.Add(1)
	go server.acceptLoop()
	return server
}

func (s *characteristicServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *characteristicServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handle(conn)
	}
}

func (s *characteristicServer) handle(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
		s.wg.Done()
	}()

	var request uuid.UUID
	for {
		if _, err := io.ReadFull(conn, request[:]); err != nil {
			return
		}

		status, value := statusOK, []byte(nil)
		if request == s.characteristic {
			value = s.read()
		} else {
			status = statusUnknownCharacteristic
		}

		header := make([]byte, headerSize, headerSize+len(value))
		header[0] = status
		binary.BigEndian.PutUint32(header[1:], uint32(len(value)))
		if _, err := conn.Write(append(header, value...)); err != nil {
			return
		}
	}
}

func (s *characteristicServer) close() error {
	s.mu.Lock()
	s.closed = true
	err := s.listener.Close()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// characteristicClient reads a remote characteristic
type characteristicClient struct {
	mu             sync.Mutex
	conn           net.Conn
	characteristic uuid.UUID
	maxSize        int
}

var _ radio.Connection = (*characteristicClient)(nil)

func dialCharacteristic(ctx context.Context, address string, characteristic uuid.UUID, maxSize int) (*characteristicClient, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Join(radio.ErrPeerUnreachable, err)
	}
	return &characteristicClient{conn: conn, characteristic: characteristic, maxSize: maxSize}, nil
}

// Read implements radio.Connection
func (c *characteristicClient) Read(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := c.conn.Write(c.characteristic[:]); err != nil {
		return nil, err
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, err
	}

	if header[0] != statusOK {
		return nil, errUnknownCharacteristic
	}

	size := int(binary.BigEndian.Uint32(header[1:]))
	if size > c.maxSize {
		return nil, fmt.Errorf("characteristic value of %d bytes exceeds %d bytes", size, c.maxSize)
	}

	value := make([]byte, size)
	if _, err := io.ReadFull(c.conn, value); err != nil {
		return nil, err
	}
	return value, nil
}

// Close implements radio.Connection
func (c *characteristicClient) Close() error {
	return c.conn.Close()
}
