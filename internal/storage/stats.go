// Package storage 把对局统计落到 Redis。上报是尽力而为的：
// 每次写入在独立协程里带短超时执行，失败只记日志，绝不反压房间协程。
package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/palemoky/maze-rush/internal/config"
	"github.com/palemoky/maze-rush/internal/game/room"
)

const (
	// Redis key
	totalsKey      = "stats:totals"
	dailyKeyPrefix = "stats:daily:"
	matchKeyPrefix = "match:"

	// 对局记录与每日计数的过期时间
	matchExpiration = 24 * time.Hour
	dailyExpiration = 48 * time.Hour

	// 单次写入超时
	opTimeout = 2 * time.Second
)

// RedisRecorder 基于 Redis 的对局统计上报，实现 room.Recorder
type RedisRecorder struct {
	client *redis.Client
	log    *zap.Logger
}

// NewClient 按配置创建 Redis 客户端并做一次连通性探测
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// NewRedisRecorder 创建统计上报器
func NewRedisRecorder(client *redis.Client, log *zap.Logger) *RedisRecorder {
	return &RedisRecorder{client: client, log: log}
}

// MatchStarted 记一局开始
func (r *RedisRecorder) MatchStarted(roomCode string) {
	go r.record("match started", func(ctx context.Context) error {
		pipe := r.client.Pipeline()
		pipe.HIncrBy(ctx, totalsKey, "matches_started", 1)
		r.bumpDaily(ctx, pipe, "matches_started")
		_, err := pipe.Exec(ctx)
		return err
	})
}

// MatchFinished 记一局结束：累加总量与当日计数，并留存单局详情
func (r *RedisRecorder) MatchFinished(roomCode string, winner room.Role, score int, duration time.Duration) {
	finishedAt := time.Now()
	go r.record("match finished", func(ctx context.Context) error {
		pipe := r.client.Pipeline()
		pipe.HIncrBy(ctx, totalsKey, "matches_finished", 1)
		pipe.HIncrBy(ctx, totalsKey, "wins:"+string(winner), 1)
		r.bumpDaily(ctx, pipe, "matches_finished")

		matchKey := matchKeyPrefix + roomCode
		pipe.HSet(ctx, matchKey, map[string]any{
			"winner":      string(winner),
			"score":       score,
			"duration_ms": duration.Milliseconds(),
			"finished_at": finishedAt.Unix(),
		})
		pipe.Expire(ctx, matchKey, matchExpiration)

		_, err := pipe.Exec(ctx)
		return err
	})
}

// bumpDaily 累加当日计数，首次写入当天的 key 时设置过期
func (r *RedisRecorder) bumpDaily(ctx context.Context, pipe redis.Pipeliner, field string) {
	key := dailyKeyPrefix + time.Now().Format("2006-01-02")
	pipe.HIncrBy(ctx, key, field, 1)
	pipe.Expire(ctx, key, dailyExpiration)
}

// record 在短超时内执行一次写入，失败只记日志
func (r *RedisRecorder) record(op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		r.log.Warn("stats write failed", zap.String("op", op), zap.Error(err))
	}
}
