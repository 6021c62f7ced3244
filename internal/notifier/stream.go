package notifier

import (
	"context"
	"fmt"

	commonredis "github.com/ARodriguezHacks/covid-calendar/common/redis"

	"github.com/go-redis/redis/v8"
)

// DefaultStream 默认 Redis Stream 名
const DefaultStream = "covid-household:exposure-changes"

// StreamPublisher 通过 XADD 写入 Redis Streams
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, change Change) error {
	_, err := commonredis.PublishToStream(ctx, p.client, p.stream, map[string]interface{}{
		"household_id": change.HouseholdID,
		"person_id":    change.PersonID,
		"kind":         string(change.Kind),
		"contagious":   change.Contagious,
		"added":        change.Added,
		"removed":      change.Removed,
		"at":           change.At.Unix(),
	})
	if err != nil {
		return fmt.Errorf("publish to stream %s: %w", p.stream, err)
	}
	return nil
}
