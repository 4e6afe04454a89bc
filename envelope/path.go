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

package envelope

import (
	"strings"
)

const (
	pathSeparator = '/'
	pathEscape    = '\\'
)

// Path locates a shared value inside an envelope. It is an ordered sequence of
// tokens kept in a canonical string form so that it can be used as a map key and
// travel on the wire unchanged.
type Path string

// NewPath builds a Path from the given tokens. Separator and escape characters
// inside tokens are escaped, so Tokens always gives back the original sequence.
func NewPath(tokens ...string) Path {
	var sb strings.Builder
	for i, token := range tokens {
		if i > 0 {
			sb.WriteByte(pathSeparator)
		}
		for _, r := range token {
			if r == pathSeparator || r == pathEscape {
				sb.WriteByte(pathEscape)
			}
			sb.WriteRune(r)
		}
	}
	return Path(sb.String())
}

// Append returns a new Path with the given tokens added at the end.
func (p Path) Append(tokens ...string) Path {
	if len(tokens) == 0 {
		return p
	}
	if p == "" {
		return NewPath(tokens...)
	}
	return p + Path(pathSeparator) + NewPath(tokens...)
}

// Tokens returns the tokens the Path was built from.
func (p Path) Tokens() []string {
	if p == "" {
		return nil
	}

	var (
		tokens  []string
		current strings.Builder
		escaped bool
	)
	for _, r := range string(p) {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == pathEscape:
			escaped = true
		case r == pathSeparator:
			tokens = append(tokens, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(tokens, current.String())
}

// String returns the canonical form of the Path
func (p Path) String() string {
	return string(p)
}
