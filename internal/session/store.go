package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"edocs/backend/pkg/redis"
)

// Store 会话存储
type Store interface {
	Load(ctx context.Context, id string) (*Data, error)
	Save(ctx context.Context, id string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	// Track 记录用户持有的会话 ID
	Track(ctx context.Context, userID, id string, ttl time.Duration) error
	// DeleteUser 删除用户持有的全部会话
	DeleteUser(ctx context.Context, userID string) error
}

// ── Redis 实现 ──

const (
	keyPrefix     = "session:"
	userKeyPrefix = "user_sessions:"
)

// RedisStore 基于 Redis 的会话存储，每个会话一个 JSON 值
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 会话存储
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Data, error) {
	var data Data
	if err := s.client.GetJSON(ctx, keyPrefix+id, &data); err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &data, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, data *Data, ttl time.Duration) error {
	return s.client.SetJSON(ctx, keyPrefix+id, data, ttl)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id)
}

// Track 用户的会话 ID 集合随最新会话续期，集合中可能残留已过期的 ID
func (s *RedisStore) Track(ctx context.Context, userID, id string, ttl time.Duration) error {
	return s.client.AddToSet(ctx, userKeyPrefix+userID, id, ttl)
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID string) error {
	ids, err := s.client.SetMembers(ctx, userKeyPrefix+userID)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, keyPrefix+id)
	}
	keys = append(keys, userKeyPrefix+userID)
	return s.client.Del(ctx, keys...)
}

// ── 进程内实现 ──

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore 进程内会话存储，Redis 不可用时降级使用，重启后会话丢失
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	users map[string]map[string]struct{}
	now   func() time.Time
}

// NewMemoryStore 创建进程内会话存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		users: make(map[string]map[string]struct{}),
		now:   time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Data, error) {
	s.mu.Lock()
	item, ok := s.items[id]
	if ok && !item.expiresAt.IsZero() && !s.now().Before(item.expiresAt) {
		delete(s.items, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	var data Data
	if err := json.Unmarshal(item.data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, data *Data, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	item := memoryItem{data: raw}
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// 顺带清理过期会话
	now := s.now()
	for k, v := range s.items {
		if !v.expiresAt.IsZero() && !now.Before(v.expiresAt) {
			delete(s.items, k)
		}
	}
	s.items[id] = item
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Track(_ context.Context, userID, id string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, ok := s.users[userID]
	if !ok {
		ids = make(map[string]struct{})
		s.users[userID] = ids
	}
	// 只保留仍存在的会话
	for old := range ids {
		if _, alive := s.items[old]; !alive {
			delete(ids, old)
		}
	}
	ids[id] = struct{}{}
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.users[userID] {
		delete(s.items, id)
	}
	delete(s.users, userID)
	return nil
}
