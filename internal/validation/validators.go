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

package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

type booleanValidator struct {
	condition bool
	message   string
}

// NewBooleanValidator returns a validator failing with message when condition is false
func NewBooleanValidator(condition bool, message string) Validator {
	return booleanValidator{condition: condition, message: message}
}

func (v booleanValidator) Validate() error {
	if !v.condition {
		return errors.New(v.message)
	}
	return nil
}

type emptyStringValidator struct {
	field string
	value string
}

// NewEmptyStringValidator returns a validator failing when value is blank
func NewEmptyStringValidator(field, value string) Validator {
	return emptyStringValidator{field: field, value: value}
}

func (v emptyStringValidator) Validate() error {
	if strings.TrimSpace(v.value) == "" {
		return fmt.Errorf("the [%s] is required", v.field)
	}
	return nil
}

type patternValidator struct {
	pattern *regexp.Regexp
	value   string
	err     error
}

// NewPatternValidator returns a validator failing with err when value does not match pattern.
// pattern must be a valid regular expression.
func NewPatternValidator(pattern *regexp.Regexp, value string, err error) Validator {
	return patternValidator{pattern: pattern, value: value, err: err}
}

func (v patternValidator) Validate() error {
	if v.pattern.MatchString(v.value) {
		return nil
	}
	if v.err != nil {
		return v.err
	}
	return fmt.Errorf("invalid value=(%s)", v.value)
}

type durationValidator struct {
	field string
	value time.Duration
}

// NewPositiveDurationValidator returns a validator failing when value is not greater than zero
func NewPositiveDurationValidator(field string, value time.Duration) Validator {
	return durationValidator{field: field, value: value}
}

func (v durationValidator) Validate() error {
	if v.value <= 0 {
		return fmt.Errorf("the [%s] must be greater than zero", v.field)
	}
	return nil
}

// TCPAddressValidator checks a host:port address
type TCPAddressValidator struct {
	address string
}

var _ Validator = (*TCPAddressValidator)(nil)

// NewTCPAddressValidator creates an instance of TCPAddressValidator
func NewTCPAddressValidator(address string) *TCPAddressValidator {
	return &TCPAddressValidator{address: address}
}

// Validate implements validation.Validator.
func (a *TCPAddressValidator) Validate() error {
	host, port, err := net.SplitHostPort(strings.TrimSpace(a.address))
	if err != nil {
		return fmt.Errorf("invalid address=(%s): %w", a.address, err)
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid address=(%s): %w", a.address, err)
	}

	if host == "" || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid address=(%s)", a.address)
	}
	return nil
}

// URLValidator checks an absolute URL with a host, optionally restricted to some schemes
type URLValidator struct {
	raw     string
	schemes []string
}

var _ Validator = (*URLValidator)(nil)

// NewURLValidator creates an instance of URLValidator
func NewURLValidator(raw string, schemes ...string) *URLValidator {
	return &URLValidator{raw: raw, schemes: schemes}
}

// Validate implements validation.Validator.
func (u *URLValidator) Validate() error {
	parsed, err := url.Parse(strings.TrimSpace(u.raw))
	if err != nil {
		return fmt.Errorf("invalid url=(%s): %w", u.raw, err)
	}

	if parsed.Host == "" {
		return fmt.Errorf("invalid url=(%s): missing host", u.raw)
	}

	if len(u.schemes) > 0 && !slices.Contains(u.schemes, parsed.Scheme) {
		return fmt.Errorf("invalid url=(%s): scheme must be one of %v", u.raw, u.schemes)
	}
	return nil
}
