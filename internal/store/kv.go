package store

import (
	"context"
	"time"
)

// KV is the opaque key-value substrate the attendance collections live in.
// Load returns nil, nil when the key has never been saved.
type KV interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// Locker hands out short-lived exclusive claims on a key. Acquire returns a
// token identifying the holder; Release only drops the claim while that token
// still holds it, so a holder whose ttl lapsed cannot free a newer claim.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Healthy(ctx context.Context) bool
}
