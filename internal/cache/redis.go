package cache

import (
    "context"
    "time"

    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog"
)

// Redis backs the cache with a shared store so several instances serve warm
// dashboards. Every failure degrades to a miss, never to a request error.
type Redis struct {
    client  *redis.Client
    log     zerolog.Logger
    prefix  string
    timeout time.Duration
}

func NewRedis(addr, password string, db int, log zerolog.Logger) (*Redis, error) {
    client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, err
    }
    return &Redis{client: client, log: log, prefix: "testpulse:", timeout: 250 * time.Millisecond}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
    cctx, cancel := context.WithTimeout(ctx, r.timeout)
    defer cancel()
    b, err := r.client.Get(cctx, r.prefix+key).Bytes()
    if err != nil {
        if err != redis.Nil { r.log.Error().Err(err).Str("op", "get").Msg("cache: redis error") }
        return nil, false
    }
    return b, true
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
    cctx, cancel := context.WithTimeout(ctx, r.timeout)
    defer cancel()
    if err := r.client.Set(cctx, r.prefix+key, val, ttl).Err(); err != nil {
        r.log.Error().Err(err).Str("op", "set").Msg("cache: redis error")
    }
}

func (r *Redis) Delete(ctx context.Context, keys ...string) {
    if len(keys) == 0 { return }
    cctx, cancel := context.WithTimeout(ctx, r.timeout)
    defer cancel()
    full := make([]string, len(keys))
    for i, k := range keys { full[i] = r.prefix + k }
    if err := r.client.Del(cctx, full...).Err(); err != nil {
        r.log.Error().Err(err).Str("op", "del").Msg("cache: redis error")
    }
}

// Flush drops only this service's keys; the database may be shared, so no
// FLUSHDB.
func (r *Redis) Flush(ctx context.Context) {
    cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    iter := r.client.Scan(cctx, 0, r.prefix+"*", 200).Iterator()
    var keys []string
    for iter.Next(cctx) { keys = append(keys, iter.Val()) }
    if err := iter.Err(); err != nil {
        r.log.Error().Err(err).Str("op", "scan").Msg("cache: redis error")
        return
    }
    if len(keys) == 0 { return }
    if err := r.client.Del(cctx, keys...).Err(); err != nil {
        r.log.Error().Err(err).Str("op", "del").Msg("cache: redis error")
    }
}

func (r *Redis) Close() { _ = r.client.Close() }
