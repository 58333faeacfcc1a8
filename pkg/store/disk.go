package store

import (
	"context"
	"encoding/base64"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/scratchpad/pkg/errors"
)

// DefaultCacheSize is the number of bytes of values that DiskKV keeps in
// memory.
const DefaultCacheSize = 8 * 1024 * 1024

// DiskKV is a KV that persists each entry as a file inside a directory.
type DiskKV struct {
	d *diskv.Diskv
}

// NewDiskKV opens (or creates) a DiskKV rooted at `basePath`.
func NewDiskKV(basePath string, cacheSize uint64) (*DiskKV, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.WithContext(err, "create store directory")
	}

	return &DiskKV{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: splitKey,
			InverseTransform:  joinKey,
			CacheSizeMax:      cacheSize,
		}),
	}, nil
}

// keySegmentLength keeps every path component of an entry under the usual
// 255 byte file name limit.
const keySegmentLength = 200

// dirSuffix marks the directories that hold long keys. It's not in the
// base64url alphabet, so a directory never has the same name as an entry.
const dirSuffix = "."

// splitKey stores an encoded key as a single file if it's short, or as a
// chain of directories ending in a file if it's not.
func splitKey(encoded string) *diskv.PathKey {
	var dirs []string
	for len(encoded) > keySegmentLength {
		dirs = append(dirs, encoded[:keySegmentLength]+dirSuffix)
		encoded = encoded[keySegmentLength:]
	}
	return &diskv.PathKey{Path: dirs, FileName: encoded}
}

func joinKey(pathKey *diskv.PathKey) string {
	var encoded strings.Builder
	for _, dir := range pathKey.Path {
		encoded.WriteString(strings.TrimSuffix(dir, dirSuffix))
	}
	encoded.WriteString(pathKey.FileName)
	return encoded.String()
}

// Keys are arbitrary strings (usually absolute paths), so they're encoded
// into file names.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(name string) (string, error) {
	key, err := base64.RawURLEncoding.DecodeString(name)
	if err != nil {
		return "", err
	}
	return string(key), nil
}

func (kv *DiskKV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	val, err := kv.d.Read(encodeKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Normalize("store get", key, err)
	}
	return string(val), true, nil
}

func (kv *DiskKV) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := kv.d.Write(encodeKey(key), []byte(value)); err != nil {
		return errors.Normalize("store set", key, err)
	}
	return nil
}

func (kv *DiskKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := kv.d.Erase(encodeKey(key)); err != nil && !os.IsNotExist(err) {
		return errors.Normalize("store delete", key, err)
	}
	return nil
}

func (kv *DiskKV) Keys(ctx context.Context) ([]string, error) {
	cancel := make(chan struct{})
	defer close(cancel)

	var keys []string
	for name := range kv.d.Keys(cancel) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key, err := decodeKey(name)
		if err != nil {
			log.WithError(err).WithField("name", name).Warn(
				"Ignoring unrecognized file in the store directory")
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
