package testutil

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/pot-code/progress-engine/internal/infrastructure/driver"
)

// ErrKVDown returned by MemoryKV while Down is set
var ErrKVDown = errors.New("kv unavailable")

// MemoryKV process local KeyValueDB, expirations are ignored
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string
	Down   bool
}

var _ driver.KeyValueDB = &MemoryKV{}

// NewMemoryKV ...
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (kv *MemoryKV) SetEX(key string, value string, expiration time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.Down {
		return ErrKVDown
	}
	kv.values[key] = value
	return nil
}

func (kv *MemoryKV) Get(key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.Down {
		return "", ErrKVDown
	}
	return kv.values[key], nil
}

func (kv *MemoryKV) Exists(key string) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.Down {
		return false, ErrKVDown
	}
	_, ok := kv.values[key]
	return ok, nil
}

func (kv *MemoryKV) Incr(key string, expiration time.Duration) (int64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.Down {
		return 0, ErrKVDown
	}
	n, _ := strconv.ParseInt(kv.values[key], 10, 64)
	n++
	kv.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (kv *MemoryKV) Ping() error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.Down {
		return ErrKVDown
	}
	return nil
}
