package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/net/context"

	"github.com/livecast/livecast/internal/models"
)

const (
	streamTTL      = 24 * time.Hour
	cachedMessages = 100
)

// RedisMirror mirrors engine state into Redis for other services to read.
// The in-memory engine state stays authoritative during a session; every
// method here is called asynchronously and best-effort.
type RedisMirror struct {
	client *redis.Client
}

func NewRedisMirror(addr, password string, db int) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisMirror{client: client}, nil
}

func (r *RedisMirror) MirrorStream(stream *models.Stream) error {
	ctx := context.Background()
	key := fmt.Sprintf("stream:%s", stream.ID)

	streamJSON, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}
	if err := r.client.Set(ctx, key, streamJSON, streamTTL).Err(); err != nil {
		return fmt.Errorf("failed to set stream data: %w", err)
	}

	if stream.Status == models.StreamStatusLive {
		return r.client.SAdd(ctx, "streams:live", stream.ID).Err()
	}
	return r.client.SRem(ctx, "streams:live", stream.ID).Err()
}

func (r *RedisMirror) DeleteStream(streamID string) error {
	ctx := context.Background()

	err := r.client.Del(ctx,
		fmt.Sprintf("stream:%s", streamID),
		fmt.Sprintf("stream:%s:viewers", streamID),
		fmt.Sprintf("stream:%s:messages", streamID),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to delete stream keys: %w", err)
	}
	return r.client.SRem(ctx, "streams:live", streamID).Err()
}

func (r *RedisMirror) SetViewerCount(streamID string, count int) error {
	ctx := context.Background()
	key := fmt.Sprintf("stream:%s:viewers", streamID)

	if err := r.client.Set(ctx, key, count, streamTTL).Err(); err != nil {
		return fmt.Errorf("failed to set viewer count: %w", err)
	}
	return nil
}

func (r *RedisMirror) CacheMessage(msg *models.Message) error {
	ctx := context.Background()
	key := fmt.Sprintf("stream:%s:messages", msg.StreamID)

	messageJSON, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// Sorted set with timestamp as score, capped to the newest entries.
	err = r.client.ZAdd(ctx, key, &redis.Z{
		Score:  float64(msg.CreatedAt.UnixNano()),
		Member: messageJSON,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to cache message: %w", err)
	}
	r.client.ZRemRangeByRank(ctx, key, 0, int64(-cachedMessages-1))

	return nil
}

// RecentMessages reads back the newest cached messages, oldest first.
func (r *RedisMirror) RecentMessages(streamID string, limit int) ([]*models.Message, error) {
	ctx := context.Background()
	key := fmt.Sprintf("stream:%s:messages", streamID)

	result, err := r.client.ZRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get cached messages: %w", err)
	}

	messages := make([]*models.Message, 0, len(result))
	for _, messageJSON := range result {
		var message models.Message
		if json.Unmarshal([]byte(messageJSON), &message) != nil {
			continue // Skip invalid entries
		}
		messages = append(messages, &message)
	}
	return messages, nil
}

func (r *RedisMirror) Close() error {
	return r.client.Close()
}
