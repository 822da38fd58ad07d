package stats

import "sync"

// MockStatsUpdater records counter movements in memory for assertions.
type MockStatsUpdater struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *MockStatsUpdater) add(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[name] += delta
}

func (m *MockStatsUpdater) Incr(name string)             { m.add(name, 1) }
func (m *MockStatsUpdater) Decr(name string)             { m.add(name, -1) }
func (m *MockStatsUpdater) Add(name string, delta int64) { m.add(name, delta) }
func (m *MockStatsUpdater) RegisterMetric(name string)   {}
func (m *MockStatsUpdater) Run()                         {}

func (m *MockStatsUpdater) Count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}
