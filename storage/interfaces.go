package storage

import "melhor-casa/models"

// KV is a durable key-value store for JSON-serializable profile state.
// Get reports false when the key is absent or its stored value is unreadable,
// leaving dst untouched.
type KV interface {
	Get(key string, dst any) (bool, error)
	Put(key string, value any) error
}

// PropertyWriter is the interface any bulk storage backend must satisfy.
type PropertyWriter interface {
	Write(props []models.Property) error
	Close() error
}
