package cache

import (
    "context"
    "sync"
    "time"
)

// Memory is a process-local TTL cache for computed dashboard payloads.
// Safe for concurrent use.
type Memory struct {
    mu    sync.Mutex
    items map[string]item
}

type item struct {
    val []byte
    exp time.Time
}

func NewMemory() *Memory { return &Memory{items: map[string]item{}} }

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool) {
    m.mu.Lock()
    defer m.mu.Unlock()
    it, ok := m.items[key]
    if !ok { return nil, false }
    if !it.exp.IsZero() && time.Now().After(it.exp) {
        delete(m.items, key)
        return nil, false
    }
    return it.val, true
}

func (m *Memory) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var exp time.Time
    if ttl > 0 { exp = time.Now().Add(ttl) }
    m.items[key] = item{val: val, exp: exp}
}

func (m *Memory) Delete(ctx context.Context, keys ...string) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, k := range keys { delete(m.items, k) }
}

func (m *Memory) Flush(ctx context.Context) {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.items = map[string]item{}
}

// Len reports live entries, expired ones included until their next Get.
func (m *Memory) Len() int {
    m.mu.Lock()
    defer m.mu.Unlock()
    return len(m.items)
}
