package credstore

import (
	"context"
	"errors"
	"fmt"

	rdb "github.com/redis/go-redis/v9"

	"github.com/leelynne/gbusiness-httpsig/session"
)

// Redis stores the credential blob under Name.
type Redis struct {
	c   *rdb.Client
	key string
}

func NewRedis(addr string, db int) *Redis {
	return NewRedisClient(rdb.NewClient(&rdb.Options{Addr: addr, DB: db}))
}

func NewRedisClient(c *rdb.Client) *Redis {
	return &Redis{c: c, key: Name}
}

func (r *Redis) Restore(ctx context.Context) (session.Credential, bool, error) {
	v, err := r.c.Get(ctx, r.key).Result()
	if errors.Is(err, rdb.Nil) {
		return session.Credential{}, false, nil
	}
	if err != nil {
		return session.Credential{}, false, fmt.Errorf("redis get: %w", err)
	}
	cred, err := Decode(v)
	if err != nil {
		return session.Credential{}, false, err
	}
	return cred, true, nil
}

func (r *Redis) Persist(ctx context.Context, cred session.Credential) error {
	v, err := Encode(cred)
	if err != nil {
		return err
	}
	if err := r.c.Set(ctx, r.key, v, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.c.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.c.Close()
}
