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

package log

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZap(t *testing.T) {
	t.Run("With unknown level falls back to debug", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(42, buffer)
		require.Equal(t, DebugLevel, logger.LogLevel())

		logger.Debug("test debug")
		require.NoError(t, logger.Flush())

		entry := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "test debug", entry["msg"])
		assert.Equal(t, DebugLevel.String(), entry["level"])
	})
	t.Run("With info level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		require.Equal(t, InfoLevel, logger.LogLevel())

		logger.Debug("hidden")
		require.Empty(t, buffer.Bytes())

		logger.Infof("neighbor %s joined", "7")
		entry := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "neighbor 7 joined", entry["msg"])
		assert.Equal(t, InfoLevel.String(), entry["level"])
		assert.True(t, logger.Enabled(WarningLevel))
		assert.False(t, logger.Enabled(DebugLevel))
	})
	t.Run("With warn level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(WarningLevel, buffer)
		require.Equal(t, WarningLevel, logger.LogLevel())

		logger.Info("hidden")
		require.Empty(t, buffer.Bytes())

		logger.Warn("transport degraded")
		entry := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "transport degraded", entry["msg"])
		assert.Equal(t, WarningLevel.String(), entry["level"])
	})
	t.Run("With error level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(ErrorLevel, buffer)
		require.Equal(t, ErrorLevel, logger.LogLevel())

		logger.Errorf("decode failed: %v", "boom")
		entry := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "decode failed: boom", entry["msg"])
		assert.Equal(t, ErrorLevel.String(), entry["level"])
	})
	t.Run("With panic level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(PanicLevel, buffer)
		require.Equal(t, PanicLevel, logger.LogLevel())
		assert.Panics(t, func() { logger.Panic("test panic") })
		assert.Panics(t, func() { logger.Panicf("test %s", "panic") })
	})
	t.Run("With fields", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		logger.With("device", "3", "round", 12, "dangling").Info("started")

		entry := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "started", entry["msg"])
		assert.Equal(t, "3", entry["device"])
		assert.EqualValues(t, 12, entry["round"])
		assert.Equal(t, "dangling", entry["_"])
	})
	t.Run("With no fields returns the same logger", func(t *testing.T) {
		logger := NewZap(InfoLevel, new(bytes.Buffer))
		assert.Same(t, logger, logger.With())
		assert.Same(t, logger, logger.With(1, "value"))
	})
	t.Run("With file output buffered until flush", func(t *testing.T) {
		file, err := os.CreateTemp(t.TempDir(), "log")
		require.NoError(t, err)
		defer file.Close()

		logger := NewZap(InfoLevel, file)
		require.NotNil(t, logger.buffered)
		logger.Info("buffered entry")
		require.NoError(t, logger.Flush())

		content, err := os.ReadFile(file.Name())
		require.NoError(t, err)
		entry := decodeEntry(t, content)
		assert.Equal(t, "buffered entry", entry["msg"])
	})
	t.Run("With standard streams never buffered", func(t *testing.T) {
		logger := NewZap(InfoLevel, os.Stdout)
		assert.Nil(t, logger.buffered)
		assert.Len(t, logger.LogOutput(), 1)
		assert.NotNil(t, logger.StdLogger())
	})
}

func TestDiscardLogger(t *testing.T) {
	logger := DiscardLogger
	logger.Debug("x")
	logger.Infof("%s", "x")
	logger.Warn("x")
	logger.Errorf("%s", "x")

	assert.Equal(t, InfoLevel, logger.LogLevel())
	assert.False(t, logger.Enabled(InfoLevel))
	assert.True(t, logger.Enabled(PanicLevel))
	assert.Equal(t, DiscardLogger, logger.With("key", "value"))
	assert.NotNil(t, logger.StdLogger())
	assert.NoError(t, logger.Flush())
	assert.Panics(t, func() { logger.Panicf("%s", "boom") })
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "info", InfoLevel.String())
	assert.Equal(t, "warn", WarningLevel.String())
	assert.Equal(t, "invalid", Level(99).String())
}

func decodeEntry(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	entry := make(map[string]any)
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &entry))
	return entry
}
