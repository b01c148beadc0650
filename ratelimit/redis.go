package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/lexigate/connector"
	"github.com/ceyewan/lexigate/xerrors"
)

// 滑动窗口脚本：清理过期成员、无条件写入本次时间戳、再计数。
// 被拒绝的尝试同样记账，持续撞限的调用方窗口始终满载，不会按窗口批量放行。
// 整段在 Redis 内原子执行，多实例并发判定不会超发。
// 返回 {allowed, count, oldestScore}。
var slidingWindowScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max    = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
local count = redis.call('ZCARD', key)

local allowed = 0
if count <= max then
    allowed = 1
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
    oldestScore = tonumber(oldest[2])
end
return {allowed, count, tostring(oldestScore)}
`)

// NewRedis 创建基于 Redis 的共享限流器。
// 每个身份一个 ZSET，成员为带唯一后缀的时间戳。
func NewRedis(cfg *Config, conn connector.RedisConnector, opts ...Option) (Limiter, error) {
	if conn == nil {
		return nil, xerrors.New("ratelimit: redis connector nil")
	}
	client := conn.GetClient()
	if client == nil {
		return nil, connector.ErrClientNil
	}
	if cfg == nil {
		cfg = &Config{}
	}
	config := *cfg
	config.setDefaults()

	return &redisLimiter{
		config: config,
		client: client,
		opts:   newOptions(opts...),
	}, nil
}

type redisLimiter struct {
	config Config
	client *redis.Client
	opts   *options
}

func (l *redisLimiter) Check(ctx context.Context, identity string) (*Decision, error) {
	if identity == "" {
		return nil, ErrIdentityEmpty
	}

	now := l.opts.now()
	nowMs := now.UnixMilli()
	windowMs := l.config.Window.Milliseconds()
	// 同一毫秒的并发尝试也要占独立成员
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.New().String()[:8]

	raw, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.config.Prefix + ":" + identity},
		nowMs, windowMs, l.config.MaxAttempts, member).Result()
	if err != nil {
		return nil, xerrors.Wrapf(ErrStoreUnreachable, "%v", err)
	}

	reply, ok := raw.([]any)
	if !ok || len(reply) != 3 {
		return nil, xerrors.New("ratelimit: unexpected script reply")
	}
	allowed := reply[0].(int64) == 1
	count := reply[1].(int64)
	oldestMs, err := strconv.ParseInt(reply[2].(string), 10, 64)
	if err != nil {
		return nil, xerrors.Wrap(err, "parse oldest score")
	}

	return buildDecision(l.config, now, allowed, count, time.UnixMilli(oldestMs)), nil
}

// buildDecision 由窗口状态推导判定结果，Redis 与本地实现共用同一套换算
func buildDecision(cfg Config, now time.Time, allowed bool, count int64, oldest time.Time) *Decision {
	d := &Decision{
		Allowed: allowed,
		Limit:   cfg.MaxAttempts,
		Count:   count,
		ResetAt: oldest.Add(cfg.Window),
	}
	if remaining := cfg.MaxAttempts - count; remaining > 0 {
		d.Remaining = remaining
	}
	if !allowed {
		if retryAfter := d.ResetAt.Sub(now); retryAfter > 0 {
			d.RetryAfter = retryAfter
		} else {
			d.RetryAfter = time.Second
		}
	}
	return d
}
