package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// RedisConfig holds the configuration for the Redis event store.
type RedisConfig struct {
	Address   string        `yaml:"address"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Retention time.Duration `yaml:"retention"`
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Address:   "localhost:6379",
		DB:        0,
		Retention: 24 * time.Hour,
	}
}

// RedisEventStore keeps per-IP event history in sorted sets scored by
// timestamp. It is a lighter-weight alternative to ClickHouse for the
// window queries; retention trims members older than the window the
// rules can ever ask for.
type RedisEventStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisEventStore connects to Redis and verifies the connection.
func NewRedisEventStore(cfg RedisConfig) (*RedisEventStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, WrapUnavailable("Ping", "", err)
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	return &RedisEventStore{client: client, retention: retention}, nil
}

// Close closes the Redis connection.
func (s *RedisEventStore) Close() error {
	return s.client.Close()
}

func eventKey(sourceIP string) string {
	return "events:src:" + sourceIP
}

// InsertEvents appends events to their per-IP sorted sets.
func (s *RedisEventStore) InsertEvents(ctx context.Context, events []schema.Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	cutoff := time.Now().Add(-s.retention).Unix()

	for i := range events {
		e := &events[i]
		data, err := json.Marshal(e)
		if err != nil {
			return &StorageError{Op: "InsertEvents", Table: eventKey(e.SourceIP), Err: err}
		}

		key := eventKey(e.SourceIP)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(e.Timestamp), Member: string(data)})
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", cutoff))
		pipe.Expire(ctx, key, s.retention)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return WrapUnavailable("InsertEvents", "", err)
	}
	return nil
}

// QueryWindow returns all events for the source IP with
// timestamp >= since.
func (s *RedisEventStore) QueryWindow(ctx context.Context, sourceIP string, since int64) ([]schema.Event, error) {
	members, err := s.client.ZRangeByScore(ctx, eventKey(sourceIP), &redis.ZRangeBy{
		Min: strconv.FormatInt(since, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, WrapUnavailable("QueryWindow", eventKey(sourceIP), err)
	}

	events := make([]schema.Event, 0, len(members))
	for _, member := range members {
		var e schema.Event
		if err := json.Unmarshal([]byte(member), &e); err != nil {
			// Skip corrupt members rather than failing the window.
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
