package tiercache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
)

// Entry layout: magic | expiry (unix nanos, big endian) | crc32 of value | value.
const fileHeaderLen = 16

var (
	fileEntryMagic      = [4]byte{'T', 'C', 'F', '1'}
	errCorruptFileEntry = errors.New("tiercache: corrupt file entry")

	createTempFile = os.CreateTemp
	renameFile     = os.Rename
)

type fileBackend struct {
	dir        string
	defaultTTL time.Duration
}

func newFileBackend(dir string, defaultTTL time.Duration) (Backend, error) {
	if dir == "" {
		dir = defaultFileDir()
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultBackendTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create file backend dir: %w", err)
	}
	return &fileBackend{dir: dir, defaultTTL: defaultTTL}, nil
}

func (b *fileBackend) Driver() Driver { return DriverFile }

func (b *fileBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path := b.path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	expiresAt, value, err := parseFileEntry(data)
	if err != nil {
		b.discard(path)
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	if time.Now().After(expiresAt) {
		b.discard(path)
		return nil, false, nil
	}
	return value, true, nil
}

// Set writes the entry to a temp file in the key's shard and renames it into
// place, so readers never see a partial entry.
func (b *fileBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = b.defaultTTL
	}
	path := b.path(key)
	shard := filepath.Dir(path)
	if err := os.MkdirAll(shard, 0o755); err != nil {
		return err
	}

	tmp, err := createTempFile(shard, "tiercache-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(frameFileEntry(time.Now().Add(ttl), value))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = renameFile(tmpPath, path)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (b *fileBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (b *fileBackend) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		glog.Warningf("tiercache: discard file entry %s: %v", path, err)
	}
}

// path spreads entries over 256 shard directories keyed by the hash prefix.
func (b *fileBackend) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(b.dir, name[:2], name+".entry")
}

func frameFileEntry(expiresAt time.Time, value []byte) []byte {
	out := make([]byte, fileHeaderLen+len(value))
	copy(out, fileEntryMagic[:])
	binary.BigEndian.PutUint64(out[4:12], uint64(expiresAt.UnixNano()))
	binary.BigEndian.PutUint32(out[12:16], crc32.ChecksumIEEE(value))
	copy(out[fileHeaderLen:], value)
	return out
}

func parseFileEntry(data []byte) (time.Time, []byte, error) {
	if len(data) < fileHeaderLen || [4]byte(data[:4]) != fileEntryMagic {
		return time.Time{}, nil, errCorruptFileEntry
	}
	value := data[fileHeaderLen:]
	if crc32.ChecksumIEEE(value) != binary.BigEndian.Uint32(data[12:16]) {
		return time.Time{}, nil, fmt.Errorf("%w: checksum mismatch", errCorruptFileEntry)
	}
	expiresAt := time.Unix(0, int64(binary.BigEndian.Uint64(data[4:12])))
	return expiresAt, value, nil
}
