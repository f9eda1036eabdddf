package tiercache

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goforj/tiercache/tiercore"
	"github.com/klauspost/compress/snappy"
)

// CompressionCodec represents a value compression algorithm.
type CompressionCodec = tiercore.CompressionCodec

const (
	CompressionNone   = tiercore.CompressionNone
	CompressionGzip   = tiercore.CompressionGzip
	CompressionSnappy = tiercore.CompressionSnappy
)

// Compressed values are stored as compressMagic | codec tag | payload.
var (
	compressMagic = []byte("TCZ1")

	ErrValueTooLarge      = errors.New("tiercache: value exceeds max size")
	ErrUnsupportedCodec   = errors.New("tiercache: unsupported compression codec")
	ErrCorruptCompression = errors.New("tiercache: corrupt compressed payload")
)

type compressor struct {
	tag        byte
	compress   func([]byte) ([]byte, error)
	decompress func([]byte) ([]byte, error)
}

var compressors = map[CompressionCodec]compressor{
	CompressionNone: {
		tag:        'n',
		compress:   cloneValue,
		decompress: cloneValue,
	},
	CompressionGzip: {
		tag:        'g',
		compress:   gzipCompress,
		decompress: gzipDecompress,
	},
	CompressionSnappy: {
		tag:        's',
		compress:   func(v []byte) ([]byte, error) { return snappy.Encode(nil, v), nil },
		decompress: func(p []byte) ([]byte, error) { return snappy.Decode(nil, p) },
	},
}

// shapingBackend compresses and size-limits values on their way into the
// wrapped backend. Values without the marker read back as-is.
type shapingBackend struct {
	inner Backend
	codec CompressionCodec
	max   int
}

func newShapingBackend(inner Backend, codec CompressionCodec, max int) Backend {
	if codec == "" {
		codec = CompressionNone
	}
	if codec == CompressionNone && max <= 0 {
		return inner
	}
	return &shapingBackend{inner: inner, codec: codec, max: max}
}

func (b *shapingBackend) Driver() Driver { return b.inner.Driver() }

func (b *shapingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := b.inner.Get(ctx, key)
	if err != nil || !ok {
		return body, ok, err
	}
	decoded, err := decodeValue(body)
	if err != nil {
		return nil, false, err
	}
	return decoded, true, nil
}

func (b *shapingBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := encodeValue(b.codec, b.max, value)
	if err != nil {
		return err
	}
	return b.inner.Set(ctx, key, encoded, ttl)
}

func (b *shapingBackend) Delete(ctx context.Context, key string) error {
	return b.inner.Delete(ctx, key)
}

// encodeValue applies codec to value and frames the result, including for
// CompressionNone, so a raw value that happens to start with the marker reads
// back unchanged. max bounds both the raw value and the compressed payload.
func encodeValue(codec CompressionCodec, max int, value []byte) ([]byte, error) {
	if max > 0 && len(value) > max {
		return nil, ErrValueTooLarge
	}
	c, ok := compressors[codec]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
	payload, err := c.compress(value)
	if err != nil {
		return nil, err
	}
	if max > 0 && len(payload) > max {
		return nil, ErrValueTooLarge
	}
	out := make([]byte, 0, len(compressMagic)+1+len(payload))
	out = append(out, compressMagic...)
	out = append(out, c.tag)
	out = append(out, payload...)
	return out, nil
}

func decodeValue(in []byte) ([]byte, error) {
	if len(in) <= len(compressMagic) || !bytes.HasPrefix(in, compressMagic) {
		return in, nil
	}
	tag := in[len(compressMagic)]
	for _, c := range compressors {
		if c.tag != tag {
			continue
		}
		out, err := c.decompress(in[len(compressMagic)+1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptCompression, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: tag %q", ErrUnsupportedCodec, tag)
}

func cloneValue(v []byte) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	return cloneBytes(v), nil
}

func gzipCompress(value []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(value); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(payload []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
