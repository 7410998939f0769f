package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func (r repo) getQueueKey(roomId string) string {
	return "room:" + roomId + ":queue"
}

// GetQueueRaw returns the stored queue document as-is (json array or keyed
// map). A missing queue yields nil, which decodes to an empty array queue.
func (r repo) GetQueueRaw(ctx context.Context, roomId string) ([]byte, error) {
	queueKey := r.getQueueKey(roomId)
	raw, err := r.rc.Get(ctx, queueKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get queue: %w", err)
	}

	r.rc.Expire(ctx, queueKey, r.expireDuration)

	return raw, nil
}

func (r repo) SetQueueRaw(ctx context.Context, roomId string, raw []byte) error {
	queueKey := r.getQueueKey(roomId)
	if err := r.rc.Set(ctx, queueKey, raw, r.expireDuration).Err(); err != nil {
		return fmt.Errorf("failed to set queue: %w", err)
	}

	return nil
}
