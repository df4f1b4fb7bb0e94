package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/ports"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

const (
	redisSessionKeyPrefix = "music:session:"
	redisSessionIndexKey  = "music:sessions"
)

var _ ports.SessionStore = (*RedisStore)(nil)

// RedisStore persists session snapshots as JSON strings, with a set of
// guild IDs as index.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from a redis:// URL.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("connected to redis session store", "addr", opts.Addr)

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisSessionKey(guildID snowflake.ID) string {
	return redisSessionKeyPrefix + guildID.String()
}

// Save stores the snapshot and indexes the guild.
func (s *RedisStore) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisSessionKey(snap.GuildID), data, 0)
		pipe.SAdd(ctx, redisSessionIndexKey, snap.GuildID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot for the guild, or nil if none is stored.
func (s *RedisStore) Load(ctx context.Context, guildID snowflake.ID) (*domain.SessionSnapshot, error) {
	data, err := s.client.Get(ctx, redisSessionKey(guildID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}

	var snap domain.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the snapshot and its index entry.
func (s *RedisStore) Delete(ctx context.Context, guildID snowflake.ID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisSessionKey(guildID))
		pipe.SRem(ctx, redisSessionIndexKey, guildID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	return nil
}

// List returns the indexed guilds. Malformed index entries are skipped.
func (s *RedisStore) List(ctx context.Context) ([]snowflake.ID, error) {
	members, err := s.client.SMembers(ctx, redisSessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session snapshots: %w", err)
	}

	ids := make([]snowflake.ID, 0, len(members))
	for _, member := range members {
		id, err := snowflake.Parse(member)
		if err != nil {
			slog.Warn("skipping malformed session index entry", "entry", member)
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
