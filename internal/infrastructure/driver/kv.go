package driver

import "time"

// KeyValueDB define a key-value storage interface
type KeyValueDB interface {
	SetEX(key string, value string, expiration time.Duration) error
	Get(key string) (string, error)
	Exists(key string) (bool, error)
	// Incr increase the counter under key and (re)arm its expiration
	Incr(key string, expiration time.Duration) (int64, error)
	Ping() error
}
