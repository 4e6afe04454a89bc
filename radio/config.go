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

package radio

import (
	"time"

	"github.com/fieldmesh/mailbox/envelope"
	"github.com/fieldmesh/mailbox/internal/validation"
)

const (
	// DefaultScanInterval is the interval between two scans
	DefaultScanInterval = time.Second
	// DefaultReadInterval is the interval between two reads of the connected peers
	DefaultReadInterval = time.Second
	// DefaultRefreshInterval is how long an unchanged payload is not delivered again
	DefaultRefreshInterval = 2 * time.Second
	// DefaultOperationTimeout bounds every connect and read
	DefaultOperationTimeout = 2 * time.Second
)

// Config configures a radio adapter
type Config struct {
	// DeviceID is the local device id, advertised in the local name
	DeviceID envelope.NeighborID
	// NamePrefix prefixes the local name. Defaults to "collektive".
	NamePrefix string
	// ScanInterval defaults to 1s
	ScanInterval time.Duration
	// ReadInterval defaults to 1s
	ReadInterval time.Duration
	// RefreshInterval is how long an unchanged payload read from a peer is not
	// delivered again. It must stay below the mailbox retention window so the
	// peer is kept alive. Defaults to 2s.
	RefreshInterval time.Duration
	// OperationTimeout defaults to 2s
	OperationTimeout time.Duration
}

// NewConfig creates a Config with the defaults for the given device
func NewConfig(deviceID envelope.NeighborID) *Config {
	config := &Config{DeviceID: deviceID}
	config.Sanitize()
	return config
}

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if c.NamePrefix == "" {
		c.NamePrefix = DefaultNamePrefix
	}
	if c.ScanInterval == 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.ReadInterval == 0 {
		c.ReadInterval = DefaultReadInterval
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = DefaultOperationTimeout
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.AllErrors()).
		AddValidator(validation.NewEmptyStringValidator("DeviceID", c.DeviceID.String())).
		AddValidator(validation.NewEmptyStringValidator("NamePrefix", c.NamePrefix)).
		AddValidator(validation.NewPositiveDurationValidator("ScanInterval", c.ScanInterval)).
		AddValidator(validation.NewPositiveDurationValidator("ReadInterval", c.ReadInterval)).
		AddValidator(validation.NewPositiveDurationValidator("RefreshInterval", c.RefreshInterval)).
		AddValidator(validation.NewPositiveDurationValidator("OperationTimeout", c.OperationTimeout)).
		Validate()
}

func (c *Config) service() Service {
	return Service{
		ID:             ServiceUUID,
		Characteristic: CharacteristicUUID,
		LocalName:      LocalName(c.NamePrefix, c.DeviceID),
	}
}
