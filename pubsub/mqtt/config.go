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

package mqtt

import (
	"time"

	"github.com/fieldmesh/mailbox/internal/validation"
)

// DefaultQoS is the quality of service used for subscriptions and publications
const DefaultQoS byte = 1

// Config represents the MQTT broker configuration
type Config struct {
	// Server is the broker url, e.g. tcp://host:1883
	Server string
	// ClientID is the MQTT client id. Defaults to "mailbox-" followed by a random uuid.
	ClientID string
	// Username and Password are optional credentials
	Username string
	Password string
	// QoS is the quality of service. Defaults to 1.
	QoS *byte
	// ConnectTimeout defines the connection timeout. Defaults to 2s.
	ConnectTimeout time.Duration
	// MaxReconnectInterval caps the delay between two reconnection attempts. Defaults to 10s.
	MaxReconnectInterval time.Duration
}

// Sanitize sets defaults for empty fields.
func (x *Config) Sanitize() {
	if x.ClientID == "" {
		x.ClientID = newClientID()
	}
	if x.QoS == nil {
		qos := DefaultQoS
		x.QoS = &qos
	}
	if x.ConnectTimeout <= 0 {
		x.ConnectTimeout = 2 * time.Second
	}
	if x.MaxReconnectInterval <= 0 {
		x.MaxReconnectInterval = 10 * time.Second
	}
}

// Validate checks whether the given configuration is valid
func (x *Config) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Server", x.Server)).
		AddValidator(validation.NewURLValidator(x.Server, "tcp", "ssl", "ws", "wss", "mqtt", "mqtts"))
	if x.QoS != nil {
		chain = chain.AddAssertion(*x.QoS <= 2, "the [QoS] must be 0, 1 or 2")
	}
	return chain.Validate()
}
