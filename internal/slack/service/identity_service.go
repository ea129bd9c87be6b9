package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"relay_bot/internal/logger"
)

type profileCacheEntry struct {
	profile *UserProfile
	expires time.Time
}

// profileCache 用户资料缓存。同一会话内显示名/头像会被反复查询，
// 短 TTL 足以吸收这类突发；ttl <= 0 时返回 nil，调用方按未启用处理。
type profileCache struct {
	mu     sync.RWMutex
	ttl    time.Duration
	values map[string]profileCacheEntry
}

func newProfileCache(ttl time.Duration) *profileCache {
	if ttl <= 0 {
		return nil
	}
	return &profileCache{
		ttl:    ttl,
		values: make(map[string]profileCacheEntry),
	}
}

func (c *profileCache) Get(userID string) (*UserProfile, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.values[userID]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expires) {
		c.mu.Lock()
		delete(c.values, userID)
		c.mu.Unlock()
		return nil, false
	}

	return entry.profile, true
}

func (c *profileCache) Set(userID string, profile *UserProfile) {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.values[userID] = profileCacheEntry{
		profile: profile,
		expires: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *profileCache) Invalidate(userID string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	delete(c.values, userID)
	c.mu.Unlock()
}

// IdentityServiceImpl 身份解析服务实现
type IdentityServiceImpl struct {
	chat  ChatClient
	cache *profileCache
}

// NewIdentityService 创建身份解析服务。cacheTTL <= 0 时关闭缓存。
func NewIdentityService(chat ChatClient, cacheTTL time.Duration) *IdentityServiceImpl {
	return &IdentityServiceImpl{
		chat:  chat,
		cache: newProfileCache(cacheTTL),
	}
}

// DisplayName 解析用户显示名
func (s *IdentityServiceImpl) DisplayName(ctx context.Context, userID string) (string, error) {
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return "", err
	}
	return profile.DisplayName, nil
}

// AvatarURL 解析用户头像地址
func (s *IdentityServiceImpl) AvatarURL(ctx context.Context, userID string) (string, error) {
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return "", err
	}
	return profile.AvatarURL, nil
}

// Invalidate 清除某个用户的缓存资料
func (s *IdentityServiceImpl) Invalidate(userID string) {
	s.cache.Invalidate(userID)
}

// MessageText 按时间戳取回消息当前文本
func (s *IdentityServiceImpl) MessageText(ctx context.Context, channel, ts string) (string, error) {
	msg, err := s.chat.FetchMessage(ctx, channel, ts)
	if err != nil {
		return "", fmt.Errorf("failed to fetch message %s in %s: %w", ts, channel, err)
	}
	if msg == nil {
		return "", fmt.Errorf("message %s in %s no longer exists", ts, channel)
	}
	return msg.Text, nil
}

func (s *IdentityServiceImpl) profile(ctx context.Context, userID string) (*UserProfile, error) {
	if cached, ok := s.cache.Get(userID); ok {
		return cached, nil
	}

	profile, err := s.chat.FetchUserProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile for %s: %w", userID, err)
	}

	s.cache.Set(userID, profile)
	logger.L().Debugf("Profile cached: user=%s name=%s", userID, profile.DisplayName)
	return profile, nil
}
