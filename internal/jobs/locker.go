package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "crm:job-lock:"

// Locker не даёт запускам одной задачи пересекаться.
// TryLock возвращает acquired=false, если задача уже выполняется.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (unlock func(), acquired bool, err error)
}

// LocalLocker — блокировка в пределах одного процесса.
type LocalLocker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// NewLocalLocker создаёт пустую локальную блокировку.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{running: make(map[string]struct{})}
}

// TryLock отказывает, пока задача name не отпущена.
func (l *LocalLocker) TryLock(_ context.Context, name string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.running[name]; busy {
		return nil, false, nil
	}
	l.running[name] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.running, name)
		l.mu.Unlock()
	}, true, nil
}

// releaseScript удаляет ключ, только если им владеет этот токен.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker — блокировка между репликами через SET NX с TTL.
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker создаёт блокировку поверх клиента Redis.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

// TryLock ставит ключ с уникальным токеном; unlock снимает только свой ключ.
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := lockKeyPrefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// Исходный ctx мог истечь вместе с задачей.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, true, nil
}

// Ping проверяет соединение с Redis для health-проверок.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
