package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/customeros/mailtrack/interfaces"
)

// NewLocker picks Redis when a client is configured, the Postgres advisory
// lock when running on Postgres, and a process-local noop otherwise.
func NewLocker(redisClient *redis.Client, db *sql.DB, postgres bool, ttl time.Duration) interfaces.Locker {
	switch {
	case redisClient != nil:
		return NewRedisLocker(redisClient, ttl)
	case postgres && db != nil:
		return NewPGAdvisoryLocker(db)
	default:
		return NoopLocker{}
	}
}

// PGAdvisoryLocker holds pg_try_advisory_lock on a dedicated connection.
// The lock is released when the connection drops.
type PGAdvisoryLocker struct {
	db *sql.DB
}

func NewPGAdvisoryLocker(db *sql.DB) *PGAdvisoryLocker {
	return &PGAdvisoryLocker{db: db}
}

func advisoryLockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

func (l *PGAdvisoryLocker) TryLock(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	lockID := advisoryLockID(key)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		conn.Close()
		return nil, err
	}
	if !acquired {
		conn.Close()
		return nil, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.ExecContext(releaseCtx, "SELECT pg_advisory_unlock($1)", lockID)
		conn.Close()
	}, nil
}

// NoopLocker always grants the lock. Used for single-instance sqlite setups.
type NoopLocker struct{}

func (NoopLocker) TryLock(context.Context, string) (func(), error) {
	return func() {}, nil
}
