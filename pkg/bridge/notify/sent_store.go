package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// sentTTL bounds how long a call identifier stays marked. Call IDs are
// unique, so this only caps memory.
const sentTTL = 24 * time.Hour

// MemorySentStore tracks notified calls in process memory. Used when no
// Redis address is configured; a restart may re-notify calls that ended
// during the restart window.
type MemorySentStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemorySentStore() *MemorySentStore {
	return &MemorySentStore{seen: make(map[string]time.Time), now: time.Now}
}

func (m *MemorySentStore) MarkSent(ctx context.Context, callID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-sentTTL)
	for id, at := range m.seen {
		if at.Before(cutoff) {
			delete(m.seen, id)
		}
	}

	if _, ok := m.seen[callID]; ok {
		return false, nil
	}
	m.seen[callID] = m.now()
	return true, nil
}

// RedisSentStore shares the notified set across processes.
type RedisSentStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSentStore(client *redis.Client) *RedisSentStore {
	return &RedisSentStore{client: client, prefix: "voicedesk:notified:"}
}

func (r *RedisSentStore) MarkSent(ctx context.Context, callID string) (bool, error) {
	return r.client.SetNX(ctx, r.prefix+callID, "1", sentTTL).Result()
}
