package store

import (
	"context"
	"sync"
)

// MemoryKV is a KV that only lives as long as the process. It's used for
// tests and for `--ephemeral` runs.
type MemoryKV struct {
	lock   sync.RWMutex
	values map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: map[string]string{}}
}

func (kv *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	kv.lock.RLock()
	defer kv.lock.RUnlock()
	val, ok := kv.values[key]
	return val, ok, nil
}

func (kv *MemoryKV) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kv.lock.Lock()
	defer kv.lock.Unlock()
	kv.values[key] = value
	return nil
}

func (kv *MemoryKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kv.lock.Lock()
	defer kv.lock.Unlock()
	delete(kv.values, key)
	return nil
}

func (kv *MemoryKV) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kv.lock.RLock()
	defer kv.lock.RUnlock()
	keys := make([]string, 0, len(kv.values))
	for key := range kv.values {
		keys = append(keys, key)
	}
	return keys, nil
}
