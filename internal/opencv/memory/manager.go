package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/logger"
)

// Manager accounts for every safe.Mat created during a run so leaked buffers
// show up in the log instead of silently holding native memory.
type Manager struct {
	allocations map[uint64]*AllocationRecord
	mu          sync.RWMutex
	stats       Stats
	logger      logger.Logger
}

type AllocationRecord struct {
	Tag       string
	CreatedAt time.Time
	Size      int64
}

type Stats struct {
	TotalAllocated int64
	TotalReleased  int64
	ActiveMats     int64
	PeakMats       int64
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		allocations: make(map[uint64]*AllocationRecord),
		logger:      log,
	}
}

func (m *Manager) TrackAllocation(id uint64, size int64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allocations[id] = &AllocationRecord{
		Tag:       tag,
		CreatedAt: time.Now(),
		Size:      size,
	}
	m.stats.TotalAllocated += size
	m.stats.ActiveMats++
	if m.stats.ActiveMats > m.stats.PeakMats {
		m.stats.PeakMats = m.stats.ActiveMats
	}

	m.logger.Debug("MemoryManager", "mat allocated", map[string]interface{}{
		"id":   id,
		"tag":  tag,
		"size": size,
	})
}

func (m *Manager) TrackDeallocation(id uint64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.allocations[id]
	if !exists {
		m.logger.Warning("MemoryManager", "release of untracked mat", map[string]interface{}{
			"id":  id,
			"tag": tag,
		})
		return
	}

	delete(m.allocations, id)
	m.stats.TotalReleased += record.Size
	m.stats.ActiveMats--
}

func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.stats
}

// Leaks lists the tags of mats that are still alive, sorted.
func (m *Manager) Leaks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tags := make([]string, 0, len(m.allocations))
	for _, record := range m.allocations {
		tags = append(tags, record.Tag)
	}
	sort.Strings(tags)
	return tags
}

// Shutdown logs the final accounting.
func (m *Manager) Shutdown() {
	stats := m.GetStats()
	fields := map[string]interface{}{
		"allocated_bytes": stats.TotalAllocated,
		"released_bytes":  stats.TotalReleased,
		"peak_mats":       stats.PeakMats,
	}

	if leaks := m.Leaks(); len(leaks) > 0 {
		fields["leaked"] = leaks
		m.logger.Warning("MemoryManager", "mats still allocated at shutdown", fields)
		return
	}

	m.logger.Debug("MemoryManager", "all mats released", fields)
}
