package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeDirectory keeps the live join codes in Redis:
// SET room:code:{code} {sessionID} NX EX ttl
// Claim is a SETNX, so two processes racing for the same code cannot both
// win; Release retires the code when the session completes. The store's
// unique constraint and joinable filter stay authoritative, this is the
// fast path.
type CodeDirectory struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCodeDirectory(client *redis.Client, ttl time.Duration) *CodeDirectory {
	return &CodeDirectory{client: client, ttl: ttl}
}

func (d *CodeDirectory) Claim(ctx context.Context, code, sessionID string) (bool, error) {
	return d.client.SetNX(ctx, d.key(code), sessionID, d.ttl).Result()
}

func (d *CodeDirectory) Resolve(ctx context.Context, code string) (string, error) {
	sessionID, err := d.client.Get(ctx, d.key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

func (d *CodeDirectory) Release(ctx context.Context, code string) error {
	return d.client.Del(ctx, d.key(code)).Err()
}

func (d *CodeDirectory) key(code string) string {
	return "room:code:" + code
}
