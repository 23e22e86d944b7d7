package column

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// Memo is a lock-striped map from original cell value to computed value,
// shared by the workers of one job.
type Memo struct {
	shards []memoShard
	mask   uint32
}

type memoShard struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemo(shardPow uint8) *Memo {
	if shardPow > 10 {
		shardPow = 10
	} // cap 1024 shards
	n := 1 << shardPow
	m := &Memo{shards: make([]memoShard, n), mask: uint32(n - 1)}
	for i := range m.shards {
		m.shards[i].m = make(map[string]string)
	}
	return m
}

func (m *Memo) shardFor(key string) *memoShard {
	return &m.shards[murmur3.Sum32([]byte(key))&m.mask]
}

func (m *Memo) Store(key, value string) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	sh.m[key] = value
	sh.mu.Unlock()
}

func (m *Memo) Load(key string) (string, bool) {
	sh := m.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.m[key]
	return v, ok
}

func (m *Memo) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}
