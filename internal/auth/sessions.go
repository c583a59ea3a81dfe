package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"academic-vault/internal/av"
	"academic-vault/internal/config"
)

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.Mutex
	clock    av.Clock
	sessions map[string]Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore(clock av.Clock) *MemorySessionStore {
	if clock == nil {
		clock = av.RealClock{}
	}
	return &MemorySessionStore{clock: clock, sessions: make(map[string]Session)}
}

func (m *MemorySessionStore) Save(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	if !m.clock.Now().Before(session.ExpiresAt) {
		delete(m.sessions, id)
		return nil, nil
	}
	return &session, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) Close() error { return nil }

const redisKeyPrefix = "av:session:"

// RedisSessionStore keeps sessions in Redis with a key TTL matching the
// session expiry.
type RedisSessionStore struct {
	client redis.UniversalClient
	clock  av.Clock
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a store on an existing client.
func NewRedisSessionStore(client redis.UniversalClient, clock av.Clock) *RedisSessionStore {
	if clock == nil {
		clock = av.RealClock{}
	}
	return &RedisSessionStore{client: client, clock: clock}
}

func (r *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	ttl := session.ExpiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &session, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}

// NewSessionStoreFromConfig creates the SessionStore selected by cfg.Type.
// It returns nil for "jwt", meaning sessions live in the token only.
func NewSessionStoreFromConfig(ctx context.Context, cfg config.SessionsConfig, clock av.Clock) (SessionStore, error) {
	switch cfg.Type {
	case "jwt", "":
		return nil, nil
	case "memory":
		return NewMemorySessionStore(clock), nil
	case "redis":
		if cfg.Addr == "" {
			return nil, fmt.Errorf("addr required for redis sessions")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
		}
		return NewRedisSessionStore(client, clock), nil
	default:
		return nil, fmt.Errorf("unknown sessions type: %s", cfg.Type)
	}
}

// NewServiceFromConfig builds a Service and its session store from cfg.
func NewServiceFromConfig(ctx context.Context, cfg config.AuthConfig, store Store, logger av.Logger, clock av.Clock) (*Service, error) {
	ttl, err := cfg.Sessions.SessionTTL()
	if err != nil {
		return nil, err
	}
	sessions, err := NewSessionStoreFromConfig(ctx, cfg.Sessions, clock)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}
	svc, err := NewService(store, sessions, cfg.JWTSecret, ttl, logger, clock, nil)
	if err != nil {
		if sessions != nil {
			sessions.Close()
		}
		return nil, err
	}
	return svc, nil
}

// Close releases the session store.
func (s *Service) Close() error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.Close()
}
