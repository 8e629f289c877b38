package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

// setIfVersion writes the view only while the flight's version is unchanged.
// KEYS: view key, version key. ARGV: expected version, payload, ttl ms.
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then current = '0' end
if current ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: flightsTTL,
	}
}

// GetFlightView returns ok=false on a miss.
func (c *RedisCache) GetFlightView(ctx context.Context, code string) (*domain.FlightView, bool, error) {
	data, err := c.client.Get(ctx, flightKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var view domain.FlightView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, false, err
	}
	return &view, true, nil
}

// FlightVersion returns the flight's invalidation counter; 0 if never invalidated.
func (c *RedisCache) FlightVersion(ctx context.Context, code string) (int64, error) {
	version, err := c.client.Get(ctx, versionKey(code)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

// SetFlightView stores view unless the flight was invalidated after version was read.
func (c *RedisCache) SetFlightView(ctx context.Context, view *domain.FlightView, version int64) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}
	keys := []string{flightKey(view.Code), versionKey(view.Code)}
	return setIfVersion.Run(ctx, c.client, keys, version, payload, c.flightsTTL.Milliseconds()).Err()
}

func (c *RedisCache) InvalidateFlight(ctx context.Context, code string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(code))
		pipe.Del(ctx, flightKey(code))
		return nil
	})
	return err
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func flightKey(code string) string {
	return "cache:flight:" + code
}

func versionKey(code string) string {
	return "cache:flight:version:" + code
}
