package interfaces

import "context"

type StorageService interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type Locker interface {
	// TryLock returns an unlock func when the lock was acquired, nil otherwise.
	TryLock(ctx context.Context, key string) (func(), error)
}
