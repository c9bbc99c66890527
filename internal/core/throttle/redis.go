package throttle

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter 按 key 判定是否放行
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

const redisAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLimiter 固定窗口计数，多实例共享；Redis 不可用时放行
type RedisLimiter struct {
	client  redisEvaler
	window  time.Duration
	max     int
	prefix  string
	timeout time.Duration
	log     *zap.Logger
}

func NewRedisClient(addr, pass string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

func NewRedisLimiter(client *redis.Client, prefix string, window time.Duration, max int, l *zap.Logger) *RedisLimiter {
	if client == nil {
		return nil
	}
	return newRedisLimiter(client, prefix, window, max, l)
}

func newRedisLimiter(client redisEvaler, prefix string, window time.Duration, max int, l *zap.Logger) *RedisLimiter {
	if l == nil {
		l = zap.NewNop()
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &RedisLimiter{
		client:  client,
		window:  window,
		max:     max,
		prefix:  prefix,
		timeout: 500 * time.Millisecond,
		log:     l,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisAllowScript, []string{l.prefix + k}, seconds).Int()
	if err != nil {
		// key 是邮箱，不落日志
		l.log.Warn("redis limiter unavailable, allowing request", zap.String("prefix", l.prefix), zap.Error(err))
		return true
	}
	return count <= l.max
}
