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
	"time"

	"github.com/fieldmesh/mailbox/internal/validation"
)

// Config represents the mDNS radio configuration
type Config struct {
	// Service is the DNS-SD service type. Defaults to "_collektive._tcp".
	Service string
	// Domain defaults to "local."
	Domain string
	// BindAddress is the address of the characteristic server. Defaults to
	// "0.0.0.0:0": every interface, on a random port.
	BindAddress string
	// BrowseTimeout bounds a scan. Defaults to 500ms.
	BrowseTimeout time.Duration
	// MaxPayloadSize bounds a characteristic value. Defaults to 1 MiB.
	MaxPayloadSize int
}

// Sanitize sets defaults for empty fields.
func (x *Config) Sanitize() {
	if x.Service == "" {
		x.Service = "_collektive._tcp"
	}
	if x.Domain == "" {
		x.Domain = "local."
	}
	if x.BindAddress == "" {
		x.BindAddress = "0.0.0.0:0"
	}
	if x.BrowseTimeout <= 0 {
		x.BrowseTimeout = 500 * time.Millisecond
	}
	if x.MaxPayloadSize <= 0 {
		x.MaxPayloadSize = 1 << 20
	}
}

// Validate checks whether the given configuration is valid
func (x *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Service", x.Service)).
		AddValidator(validation.NewEmptyStringValidator("Domain", x.Domain)).
		AddValidator(validation.NewTCPAddressValidator(x.BindAddress)).
		Validate()
}
