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

package pubsub

import (
	"regexp"
	"strings"
	"time"

	"github.com/fieldmesh/mailbox/envelope"
	gerrors "github.com/fieldmesh/mailbox/errors"
	"github.com/fieldmesh/mailbox/internal/validation"
)

const (
	// DefaultNamespace is the first level of every topic
	DefaultNamespace = "drone"
	// DefaultAnnounceInterval is the interval between two presence announcements
	DefaultAnnounceInterval = 5 * time.Second
	// DefaultPendingQueueSize is the number of sends kept while disconnected
	DefaultPendingQueueSize = 16
	// DefaultConnectRetries is the number of connection attempts made by Start
	DefaultConnectRetries = 5

	inboxLevel = "neighbors"
)

// topic levels must be safe for every driver syntax
var levelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config configures a pub/sub adapter
type Config struct {
	// DeviceID is the local device id. It becomes a topic level.
	DeviceID envelope.NeighborID
	// Namespace is the first topic level. Defaults to "drone".
	Namespace string
	// AnnounceInterval is the interval between presence announcements of
	// directed adapters. Defaults to 5s.
	AnnounceInterval time.Duration
	// NeighborExpiry is how long a neighbor stays reachable after its last
	// announcement. Defaults to three announce intervals.
	NeighborExpiry time.Duration
	// PendingQueueSize is the number of sends kept while disconnected and
	// flushed on reconnection. Defaults to 16.
	PendingQueueSize int
	// DisablePendingQueue makes sends fail with ErrNotConnected while disconnected.
	DisablePendingQueue bool
	// ConnectRetries is the number of connection attempts. Defaults to 5.
	ConnectRetries int
	// ConnectBackoff is the initial delay between two attempts. Defaults to 100ms.
	ConnectBackoff time.Duration
	// MaxConnectBackoff caps the delay between two attempts. Defaults to 2s.
	MaxConnectBackoff time.Duration
}

var _ validation.Validator = (*Config)(nil)

// NewConfig creates a Config with the defaults for the given device
func NewConfig(deviceID envelope.NeighborID) *Config {
	config := &Config{DeviceID: deviceID}
	config.Sanitize()
	return config
}

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.Namespace) == "" {
		c.Namespace = DefaultNamespace
	}
	if c.AnnounceInterval == 0 {
		c.AnnounceInterval = DefaultAnnounceInterval
	}
	if c.NeighborExpiry == 0 {
		c.NeighborExpiry = 3 * c.AnnounceInterval
	}
	if c.PendingQueueSize == 0 {
		c.PendingQueueSize = DefaultPendingQueueSize
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = DefaultConnectRetries
	}
	if c.ConnectBackoff == 0 {
		c.ConnectBackoff = 100 * time.Millisecond
	}
	if c.MaxConnectBackoff == 0 {
		c.MaxConnectBackoff = 2 * time.Second
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("DeviceID", c.DeviceID.String())).
		AddValidator(validation.NewPatternValidator(levelPattern, c.DeviceID.String(), gerrors.NewErrInvalidNeighborID(c.DeviceID))).
		AddValidator(validation.NewPatternValidator(levelPattern, c.Namespace, nil)).
		AddValidator(validation.NewPositiveDurationValidator("AnnounceInterval", c.AnnounceInterval)).
		AddValidator(validation.NewPositiveDurationValidator("NeighborExpiry", c.NeighborExpiry)).
		AddAssertion(c.NeighborExpiry > c.AnnounceInterval, "the [NeighborExpiry] must be greater than the [AnnounceInterval]").
		AddAssertion(c.PendingQueueSize > 0, "the [PendingQueueSize] must be greater than zero").
		AddAssertion(c.ConnectRetries > 0, "the [ConnectRetries] must be greater than zero").
		AddValidator(validation.NewPositiveDurationValidator("ConnectBackoff", c.ConnectBackoff)).
		AddAssertion(c.MaxConnectBackoff >= c.ConnectBackoff, "the [MaxConnectBackoff] must not be lower than the [ConnectBackoff]").
		Validate()
}

func (c *Config) announceTopic() Topic {
	return Topic{c.Namespace, c.DeviceID.String()}
}

func (c *Config) announceFilter() Topic {
	return Topic{c.Namespace, Wildcard}
}

func (c *Config) inboxTopic(id envelope.NeighborID) Topic {
	return Topic{c.Namespace, id.String(), inboxLevel}
}

func (c *Config) inboxFilter() Topic {
	return Topic{c.Namespace, Wildcard, inboxLevel}
}
