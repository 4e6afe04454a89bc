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

// Package log is the structured logging facade used by every component of
// the module. The default implementation writes JSON entries through zap.
package log

import (
	"io"
	golog "log"
)

// Logger is implemented by the loggers handed to the mailbox, its transports
// and radios through their WithLogger option.
type Logger interface {
	Debug(...any)
	Debugf(string, ...any)
	Info(...any)
	Infof(string, ...any)
	Warn(...any)
	Warnf(string, ...any)
	Error(...any)
	Errorf(string, ...any)
	// Fatal and Fatalf log then call os.Exit(1)
	Fatal(...any)
	Fatalf(string, ...any)
	// Panic and Panicf log then panic
	Panic(...any)
	Panicf(string, ...any)

	// Enabled reports whether entries at level are written
	Enabled(level Level) bool
	// With returns a child logger adding the given key-value pairs to
	// every entry, e.g. With("device", id)
	With(keyValues ...any) Logger
	// LogLevel returns the minimum level written
	LogLevel() Level
	// LogOutput returns the writers entries go to
	LogOutput() []io.Writer
	// StdLogger adapts the logger for libraries expecting a *log.Logger
	StdLogger() *golog.Logger
	// Flush drains buffered output. Call it on shutdown.
	Flush() error
}
