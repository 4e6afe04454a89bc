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

package redis

import (
	"time"

	"github.com/fieldmesh/mailbox/internal/validation"
)

// Config represents the Redis broker configuration
type Config struct {
	// Address is the redis server address in the format host:port
	Address string
	// Username and Password are optional credentials
	Username string
	Password string
	// DB is the logical database. Pub/sub channels are global to the server.
	DB int
	// DialTimeout defines the dial timeout. Defaults to 2s.
	DialTimeout time.Duration
	// HealthCheckInterval is the interval between two pings used to detect
	// lost and restored connections. Defaults to 1s.
	HealthCheckInterval time.Duration
}

// Sanitize sets defaults for empty fields.
func (x *Config) Sanitize() {
	if x.DialTimeout <= 0 {
		x.DialTimeout = 2 * time.Second
	}
	if x.HealthCheckInterval <= 0 {
		x.HealthCheckInterval = time.Second
	}
}

// Validate checks whether the given configuration is valid
func (x *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Address", x.Address)).
		AddValidator(validation.NewTCPAddressValidator(x.Address)).
		AddAssertion(x.DB >= 0, "the [DB] must not be negative").
		Validate()
}
