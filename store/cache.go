package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chessrep/movetree"
)

const cursorKeyPrefix = "movetree:cursor:"

// CursorKey returns the cache key of a chapter's cursor position.
func CursorKey(chapterID string) string {
	return cursorKeyPrefix + chapterID
}

// CursorPosition is the cached part of a cursor: where it is, not the tree.
type CursorPosition struct {
	Path      []movetree.BranchPoint `json:"path"`
	MoveIndex int                    `json:"moveIndex"`
}

// Apply moves c to the cached position. The tree is not touched.
func (p CursorPosition) Apply(c *movetree.Cursor) error {
	return c.SetPosition(p.Path, p.MoveIndex)
}

// CursorCache keeps the latest cursor position of each chapter in Redis.
type CursorCache struct {
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.SugaredLogger
}

// NewCursorCache returns a cache whose entries expire after ttl. A zero ttl
// keeps entries until they are dropped.
func NewCursorCache(client redis.Cmdable, ttl time.Duration, log *zap.SugaredLogger) *CursorCache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CursorCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Put stores the position of c for the chapter.
func (c *CursorCache) Put(ctx context.Context, chapterID string, cur *movetree.Cursor) error {
	data, err := json.Marshal(CursorPosition{
		Path:      cur.Path(),
		MoveIndex: cur.MoveIndex(),
	})
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, CursorKey(chapterID), string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("store: cache cursor of %s: %w", chapterID, err)
	}
	return nil
}

// Get returns the cached position of the chapter. ok is false when nothing
// is cached.
func (c *CursorCache) Get(ctx context.Context, chapterID string) (pos CursorPosition, ok bool, err error) {
	v, err := c.client.Get(ctx, CursorKey(chapterID)).Result()
	if errors.Is(err, redis.Nil) {
		return CursorPosition{}, false, nil
	}
	if err != nil {
		return CursorPosition{}, false, fmt.Errorf("store: read cached cursor of %s: %w", chapterID, err)
	}
	if err := json.Unmarshal([]byte(v), &pos); err != nil {
		c.log.Warnw("dropping unreadable cursor cache entry", "chapter", chapterID, "error", err)
		_ = c.client.Del(ctx, CursorKey(chapterID)).Err()
		return CursorPosition{}, false, nil
	}
	return pos, true, nil
}

// Drop removes the cached position of the chapter.
func (c *CursorCache) Drop(ctx context.Context, chapterID string) error {
	return c.client.Del(ctx, CursorKey(chapterID)).Err()
}

// ConnectRedis opens a Redis client for addr and checks it with a ping.
func ConnectRedis(ctx context.Context, addr string, db int, log *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctxPing).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: connect to redis: %w", err)
	}
	if log != nil {
		log.Infow("connected to redis", "addr", addr, "db", db)
	}
	return client, nil
}
