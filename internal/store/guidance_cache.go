package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"
)

// DefaultGuidancePrefix guidance 缓存 key 前缀：<prefix><household_id>
const DefaultGuidancePrefix = "covid-household:guidance:"

// GuidanceCache 家庭指导结果缓存
// 缓存只是读优化：任何写操作后由 service 层 Invalidate，命中与否不影响结果
type GuidanceCache struct {
	kv     KV
	prefix string
	ttl    time.Duration
}

// NewGuidanceCache kv 为 nil 时返回 nil（所有方法对 nil 安全，表示禁用缓存）
func NewGuidanceCache(kv KV, prefix string, ttl time.Duration) *GuidanceCache {
	if kv == nil {
		return nil
	}
	if prefix == "" {
		prefix = DefaultGuidancePrefix
	}
	return &GuidanceCache{kv: kv, prefix: prefix, ttl: ttl}
}

func (c *GuidanceCache) key(householdID string) string {
	return c.prefix + householdID
}

// Get 未命中返回 ErrMiss
func (c *GuidanceCache) Get(ctx context.Context, householdID string) ([]domain.GuidanceResult, error) {
	if c == nil {
		return nil, ErrMiss
	}
	raw, err := c.kv.Get(ctx, c.key(householdID))
	if err != nil {
		return nil, err
	}
	var results []domain.GuidanceResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("decode cached guidance: %w", err)
	}
	if results == nil {
		results = []domain.GuidanceResult{}
	}
	return results, nil
}

func (c *GuidanceCache) Put(ctx context.Context, householdID string, results []domain.GuidanceResult) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode guidance: %w", err)
	}
	return c.kv.Set(ctx, c.key(householdID), string(b), c.ttl)
}

func (c *GuidanceCache) Invalidate(ctx context.Context, householdID string) error {
	if c == nil {
		return nil
	}
	return c.kv.Del(ctx, c.key(householdID))
}

// IsMiss 缓存未命中
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
