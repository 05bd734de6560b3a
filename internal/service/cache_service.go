package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"versus-backend/internal/domain"
	"versus-backend/pkg/logger"
	"versus-backend/pkg/redis"
)

// Each battle has a version floor: the ledger version of the last vote the
// cache recorded. Backfills from reads older than the floor are dropped.
var (
	setViewScript = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[1]) or '0')
if tonumber(ARGV[1]) < floor then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

	backfillDeviceScript = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[1]) or '0')
if tonumber(ARGV[1]) < floor then
  return 0
end
local n = redis.call('HSETNX', KEYS[2], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
return n
`)

	recordVoteScript = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[1]) or '0')
if tonumber(ARGV[1]) >= floor then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[4])
  redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
else
  redis.call('HDEL', KEYS[2], ARGV[2])
end
redis.call('PEXPIRE', KEYS[2], ARGV[5])
redis.call('DEL', KEYS[3], KEYS[4])
return 1
`)
)

// CacheService is the optional Redis read cache in front of the ledger. A
// nil client turns every method into a miss or a no-op. Cache errors are
// logged and never returned.
type CacheService struct {
	redis  *redis.Client
	logger *logger.Logger
}

// NewCacheService creates a new cache service
func NewCacheService(redisClient *redis.Client, log *logger.Logger) *CacheService {
	return &CacheService{
		redis:  redisClient,
		logger: log.Component("cache"),
	}
}

// Enabled reports whether a Redis client is configured
func (c *CacheService) Enabled() bool {
	return c != nil && c.redis != nil
}

// getJSON reads key into v and reports a hit
func (c *CacheService) getJSON(ctx context.Context, key string, v any) bool {
	data, err := c.redis.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("Cache read failed, falling back to store", zap.Error(err))
		return false
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		c.logger.Warn("Cache entry corrupted, falling back to store", zap.Error(err))
		return false
	}
	return true
}

func (c *CacheService) setJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal value for caching", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, key, string(data), ttl); err != nil {
		c.logger.Warn("Failed to cache value", zap.Error(err))
	}
}

// GetView returns the cached device-independent view of a battle
func (c *CacheService) GetView(ctx context.Context, battleID string) (*domain.BattleView, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var view domain.BattleView
	if !c.getJSON(ctx, c.redis.KeyBuilder.KeyBattleView(battleID), &view) {
		c.logger.Debug("Battle view cache miss", zap.String("battle_id", battleID))
		return nil, false
	}
	c.logger.Debug("Battle view cache hit", zap.String("battle_id", battleID))
	return &view, true
}

// SetView caches a view with its userVote stripped. A view read at a
// version older than the battle's last recorded vote is not stored.
func (c *CacheService) SetView(ctx context.Context, view domain.BattleView, version int64) {
	if !c.Enabled() {
		return
	}
	view.UserVote = nil
	data, err := json.Marshal(view)
	if err != nil {
		c.logger.Error("Failed to marshal value for caching", zap.Error(err))
		return
	}
	kb := c.redis.KeyBuilder
	keys := []string{kb.KeyBattleVersion(view.BattleID), kb.KeyBattleView(view.BattleID)}
	if _, err := c.redis.RunScript(ctx, setViewScript, keys,
		version, string(data), redis.TTLBattleView.Milliseconds()); err != nil {
		c.logger.Warn("Failed to cache value", zap.Error(err))
	}
}

// DeviceVote looks up a device's choice in the write-through hash. A miss
// means "unknown", not "has not voted".
func (c *CacheService) DeviceVote(ctx context.Context, battleID, deviceID string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}
	optionID, err := c.redis.HGet(ctx, c.redis.KeyBuilder.KeyBattleDevices(battleID), deviceID)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Device vote cache read failed", zap.Error(err))
		}
		return "", false
	}
	return optionID, true
}

// RememberDeviceVote backfills the device hash after a store read at
// version. It never replaces an entry and is skipped when a newer vote has
// been recorded since the read.
func (c *CacheService) RememberDeviceVote(ctx context.Context, battleID, deviceID, optionID string, version int64) {
	if !c.Enabled() {
		return
	}
	kb := c.redis.KeyBuilder
	keys := []string{kb.KeyBattleVersion(battleID), kb.KeyBattleDevices(battleID)}
	if _, err := c.redis.RunScript(ctx, backfillDeviceScript, keys,
		version, deviceID, optionID, redis.TTLDevices.Milliseconds()); err != nil {
		c.logger.Warn("Failed to backfill device vote", zap.String("battle_id", battleID), zap.Error(err))
	}
}

// RecordVote writes the device's new choice through, raises the battle's
// version floor and drops the stale view and trending entries. A vote that
// arrives after a newer one clears the device entry instead of writing it.
func (c *CacheService) RecordVote(ctx context.Context, battleID, deviceID, optionID string, version int64, trendingLimit int) {
	if !c.Enabled() {
		return
	}
	kb := c.redis.KeyBuilder
	keys := []string{
		kb.KeyBattleVersion(battleID),
		kb.KeyBattleDevices(battleID),
		kb.KeyBattleView(battleID),
		kb.KeyTrending(trendingLimit),
	}
	ttl := redis.TTLDevices.Milliseconds()
	if _, err := c.redis.RunScript(ctx, recordVoteScript, keys, version, deviceID, optionID, ttl, ttl); err != nil {
		c.logger.Error("Failed to record vote in cache",
			zap.String("battle_id", battleID),
			zap.Error(err))
		return
	}
	c.logger.Debug("Vote recorded in cache", zap.String("battle_id", battleID))
}

// InvalidateBattle drops every cached entry derived from a battle. With
// withDevices the battle is gone, so a tombstone floor also blocks
// backfills from reads still in flight.
func (c *CacheService) InvalidateBattle(ctx context.Context, battleID string, trendingLimit int, withDevices bool) {
	if !c.Enabled() {
		return
	}
	kb := c.redis.KeyBuilder
	pipe := c.redis.Pipeline()
	pipe.Del(ctx, kb.KeyBattleView(battleID), kb.KeyTrending(trendingLimit))
	if withDevices {
		pipe.Del(ctx, kb.KeyBattleDevices(battleID))
		pipe.Set(ctx, kb.KeyBattleVersion(battleID), int64(math.MaxInt64), redis.TTLTombstone)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Error("Failed to invalidate battle cache",
			zap.String("battle_id", battleID),
			zap.Error(err))
	}
}

// InvalidateView drops the cached view of one battle
func (c *CacheService) InvalidateView(ctx context.Context, battleID string) {
	if !c.Enabled() {
		return
	}
	if err := c.redis.Delete(ctx, c.redis.KeyBuilder.KeyBattleView(battleID)); err != nil {
		c.logger.Warn("Failed to invalidate battle view", zap.String("battle_id", battleID), zap.Error(err))
	}
}

// GetTrending returns a cached trending list
func (c *CacheService) GetTrending(ctx context.Context, limit int) ([]domain.BattleSummary, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var list []domain.BattleSummary
	if !c.getJSON(ctx, c.redis.KeyBuilder.KeyTrending(limit), &list) {
		return nil, false
	}
	return list, true
}

// SetTrending caches a trending list
func (c *CacheService) SetTrending(ctx context.Context, limit int, list []domain.BattleSummary) {
	if !c.Enabled() {
		return
	}
	c.setJSON(ctx, c.redis.KeyBuilder.KeyTrending(limit), list, redis.TTLTrending)
}

// HealthCheck pings Redis; a disabled cache is healthy
func (c *CacheService) HealthCheck(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	start := time.Now()
	err := c.redis.Health(ctx)
	if err != nil {
		c.logger.Error("Cache health check failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}
	return nil
}
