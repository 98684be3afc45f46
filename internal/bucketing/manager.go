package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

// Manager assigns stable buckets to keys so event tables can be
// partitioned without hot spots.
type Manager struct {
	eventBuckets int
	hasherPool   sync.Pool
}

func NewManager(eventBuckets int) *Manager {
	if eventBuckets < 1 {
		eventBuckets = 1
	}
	return &Manager{
		eventBuckets: eventBuckets,
		hasherPool: sync.Pool{
			New: func() interface{} {
				return murmur3.New64()
			},
		},
	}
}

// EventBucket returns a bucket in [0, eventBuckets) for key.
func (m *Manager) EventBucket(key string) int {
	return int(m.hash(key) % uint64(m.eventBuckets))
}

// DateBucket returns the UTC day of t as YYYY-MM-DD.
func (m *Manager) DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (m *Manager) hash(key string) uint64 {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
