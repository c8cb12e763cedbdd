package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultBuildLockTTL bounds how long a crashed build can block the next one.
const DefaultBuildLockTTL = 5 * time.Minute

const buildLockPrefix = "course-builder:build:"

// BuildLock keeps two course builds for the same learner and competency from
// running at once. Acquire reports false when another build holds the key; the
// returned release function is always safe to call.
type BuildLock interface {
	Acquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// BuildLockKey derives the lock key for a learner and competency.
func BuildLockKey(learnerID, competency string) string {
	return buildLockPrefix + learnerID + ":" + strings.ToLower(strings.TrimSpace(competency))
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another build is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisBuildLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewBuildLock returns a Redis-backed lock, or a lock that always succeeds when
// client is nil.
func NewBuildLock(client *redis.Client, ttl time.Duration, logger *zap.Logger) BuildLock {
	if client == nil {
		return noopBuildLock{}
	}
	if ttl <= 0 {
		ttl = DefaultBuildLockTTL
	}
	return &redisBuildLock{client: client, ttl: ttl, logger: logger.Named("build-lock")}
}

var _ BuildLock = (*redisBuildLock)(nil)

func (l *redisBuildLock) Acquire(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("failed to acquire build lock: %w", err)
	}
	if !ok {
		l.logger.Info("Build already in progress", zap.String("key", key))
		return func() {}, false, nil
	}

	release := func() {
		// The request context may already be done; release on a short independent one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("Failed to release build lock", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}

type noopBuildLock struct{}

var _ BuildLock = noopBuildLock{}

func (noopBuildLock) Acquire(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}
