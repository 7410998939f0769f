package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
}

func NewRepo(rc *redis.Client, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
	}
}

// ServerTime returns the store-assigned clock in unix milliseconds. All
// playback timestamps are stamped with it, never with a writer's local
// clock.
func (r repo) ServerTime(ctx context.Context) (int64, error) {
	t, err := r.rc.Time(ctx).Result()
	if err != nil {
		return 0, err
	}

	return t.UnixMilli(), nil
}
