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

package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/fieldmesh/mailbox/internal/bufferpool"
)

// Compression is the algorithm applied to whole encoded envelopes.
// Every device of a deployment must use the same Compression.
type Compression int

const (
	// NoCompression leaves the encoded envelope untouched.
	NoCompression Compression = iota
	// GzipCompression uses gzip (RFC 1952).
	GzipCompression
	// ZstdCompression uses Zstandard (RFC 8878).
	ZstdCompression
	// BrotliCompression uses Brotli (RFC 7932).
	BrotliCompression
)

// String returns the compression name
func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case GzipCompression:
		return "gzip"
	case ZstdCompression:
		return "zstd"
	case BrotliCompression:
		return "brotli"
	default:
		return "unknown"
	}
}

type compressor interface {
	compress(data []byte) ([]byte, error)
	// decompress fails when the output would exceed limit bytes
	decompress(data []byte, limit int) ([]byte, error)
}

func newCompressor(compression Compression) (compressor, error) {
	switch compression {
	case NoCompression:
		return nil, nil
	case GzipCompression:
		return newGzipCompressor(), nil
	case ZstdCompression:
		return newZstdCompressor()
	case BrotliCompression:
		return newBrotliCompressor(), nil
	default:
		return nil, fmt.Errorf("unknown compression %d", compression)
	}
}

func readLimited(reader io.Reader, limit int) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(reader, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, fmt.Errorf("decompressed size exceeds %d bytes", limit)
	}
	return out, nil
}

type gzipCompressor struct {
	writers sync.Pool
}

func newGzipCompressor() *gzipCompressor {
	return &gzipCompressor{
		writers: sync.Pool{
			New: func() any {
				return gzip.NewWriter(nil)
			},
		},
	}
}

func (g *gzipCompressor) compress(data []byte) ([]byte, error) {
	writer := g.writers.Get().(*gzip.Writer)
	defer g.writers.Put(writer)

	buf := bufferpool.Pool.Get()
	defer bufferpool.Pool.Put(buf)

	writer.Reset(buf)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return slices.Clone(buf.Bytes()), nil
}

func (g *gzipCompressor) decompress(data []byte, limit int) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return readLimited(reader, limit)
}

// zstdCompressor shares one encoder, EncodeAll being safe for concurrent use.
// Decoders are pooled and stream into readLimited.
type zstdCompressor struct {
	encoder     *zstd.Encoder
	decoders    sync.Pool
	decoderOpts []zstd.DOption
}

func newZstdCompressor() (*zstdCompressor, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
		zstd.WithLowerEncoderMem(true),
		zstd.WithZeroFrames(true))
	if err != nil {
		return nil, err
	}

	decoderOpts := []zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxMemory(64 << 20),
	}

	// validate the options eagerly
	decoder, err := zstd.NewReader(nil, decoderOpts...)
	if err != nil {
		_ = encoder.Close()
		return nil, err
	}

	z := &zstdCompressor{encoder: encoder, decoderOpts: decoderOpts}
	z.decoders.Put(decoder)
	z.decoders.New = func() any {
		decoder, err := zstd.NewReader(nil, z.decoderOpts...)
		if err != nil {
			return nil
		}
		return decoder
	}
	return z, nil
}

func (z *zstdCompressor) compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, nil), nil
}

func (z *zstdCompressor) decompress(data []byte, limit int) ([]byte, error) {
	decoder, ok := z.decoders.Get().(*zstd.Decoder)
	if !ok || decoder == nil {
		return nil, errors.New("failed to create zstd decoder")
	}
	defer func() {
		_ = decoder.Reset(nil)
		z.decoders.Put(decoder)
	}()

	// a bytes.Reader keeps the decoder streaming, unlike a bytes.Buffer
	if err := decoder.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return readLimited(decoder, limit)
}

type brotliCompressor struct {
	writers sync.Pool
	readers sync.Pool
}

func newBrotliCompressor() *brotliCompressor {
	return &brotliCompressor{
		writers: sync.Pool{
			New: func() any {
				return brotli.NewWriterLevel(nil, brotli.DefaultCompression)
			},
		},
		readers: sync.Pool{
			New: func() any {
				return brotli.NewReader(nil)
			},
		},
	}
}

func (b *brotliCompressor) compress(data []byte) ([]byte, error) {
	writer := b.writers.Get().(*brotli.Writer)
	defer b.writers.Put(writer)

	buf := bufferpool.Pool.Get()
	defer bufferpool.Pool.Put(buf)

	writer.Reset(buf)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return slices.Clone(buf.Bytes()), nil
}

func (b *brotliCompressor) decompress(data []byte, limit int) ([]byte, error) {
	reader := b.readers.Get().(*brotli.Reader)
	defer func() {
		_ = reader.Reset(nil)
		b.readers.Put(reader)
	}()

	if err := reader.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return readLimited(reader, limit)
}
