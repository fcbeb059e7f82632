package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe checks one dependency.
type Probe struct {
	Name    string
	Check   func(ctx context.Context) error
	Timeout time.Duration
}

// JournalSizer reports the number of journaled events awaiting replay.
type JournalSizer interface {
	Size() (int, error)
}

type Monitor struct {
	probes  []Probe
	journal JournalSizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(probes []Probe, journal JournalSizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		probes:   probes,
		journal:  journal,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
		status:   Status{Components: map[string]bool{}},
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports the last result for a component. Unknown components are
// considered offline.
func (m *Monitor) IsOnline(component string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Components[component]
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	components := make(map[string]bool, len(m.status.Components))
	for name, ok := range m.status.Components {
		components[name] = ok
	}
	status := m.status
	status.Components = components
	return status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every probe once and stores the outcome.
func (m *Monitor) Refresh(ctx context.Context) {
	status := Status{
		Components: make(map[string]bool, len(m.probes)),
		LastCheck:  time.Now(),
	}
	for _, probe := range m.probes {
		status.Components[probe.Name] = m.check(ctx, probe)
	}
	if m.journal != nil {
		size, err := m.journal.Size()
		if err != nil {
			m.logger.Warn("journal size check failed", zap.Error(err))
		}
		status.Components["journal"] = err == nil
		status.JournalSize = size
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) check(ctx context.Context, probe Probe) bool {
	timeout := probe.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := probe.Check(ctx); err != nil {
		m.logger.Warn("health probe failed", zap.String("component", probe.Name), zap.Error(err))
		return false
	}
	return true
}
