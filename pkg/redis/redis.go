package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/insightvigil/biblioteca-escolar/config"
)

// Client Redis 客户端封装
// 用于节假日缓存、逾期提醒去重与写接口限流；连接不可用时调用方降级运行
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

// ── 节假日缓存 ──

const holidayPrefix = "holidays:"

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("缓存未命中")

// GetHolidays 读取学期节假日缓存（YYYY-MM-DD 列表）
func (c *Client) GetHolidays(ctx context.Context, periodID string) ([]string, error) {
	val, err := c.rdb.Get(ctx, holidayPrefix+periodID).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	if val == "" {
		return []string{}, nil
	}
	return strings.Split(val, ","), nil
}

// SetHolidays 写入学期节假日缓存
func (c *Client) SetHolidays(ctx context.Context, periodID string, dates []string, ttl time.Duration) error {
	return c.rdb.Set(ctx, holidayPrefix+periodID, strings.Join(dates, ","), ttl).Err()
}

// ── 逾期提醒去重 ──

const reminderPrefix = "reminder:"

// MarkReminderSent 标记某借阅项在某日已提醒；返回 false 表示当日已提醒过
func (c *Client) MarkReminderSent(ctx context.Context, itemID, day string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, reminderPrefix+itemID+":"+day, "1", ttl).Result()
}

// ── 限流 ──

// CheckRateLimit 固定窗口计数限流；返回 true 表示允许本次请求
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
