package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/config"
)

// Client Redis 客户端封装
// 用于 Token 黑名单与视频通话状态；多实例部署时状态共享
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 视频通话状态 ──
//
// 记录 user -> appointment 的当前通话映射，加入新通话前
// 自动结束上一个通话。TTL 兜底，避免崩溃后状态残留。

const (
	callPrefix  = "call:current:"
	callMaxLife = 6 * time.Hour
)

// SetCurrentCall 记录用户当前所在通话的预约 ID
func (c *Client) SetCurrentCall(ctx context.Context, userID, appointmentID string) error {
	return c.rdb.Set(ctx, callPrefix+userID, appointmentID, callMaxLife).Err()
}

// GetCurrentCall 返回用户当前所在通话的预约 ID，不在通话中返回空串
func (c *Client) GetCurrentCall(ctx context.Context, userID string) (string, error) {
	val, err := c.rdb.Get(ctx, callPrefix+userID).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return val, err
}

// ClearCurrentCall 清除用户的通话状态
func (c *Client) ClearCurrentCall(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, callPrefix+userID).Err()
}

// ClearCallsForAppointment 结束通话时清除所有仍指向该预约的用户状态
func (c *Client) ClearCallsForAppointment(ctx context.Context, appointmentID string, userIDs ...string) error {
	for _, uid := range userIDs {
		current, err := c.GetCurrentCall(ctx, uid)
		if err != nil {
			return err
		}
		if current == appointmentID {
			if err := c.ClearCurrentCall(ctx, uid); err != nil {
				return err
			}
		}
	}
	return nil
}

// ── 速率限制 ──

// CheckRateLimit 基于有序集合的滑动窗口限流
// 返回 true 表示本次请求在限额内
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window)

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return countCmd.Val() < int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
