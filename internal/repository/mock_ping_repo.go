package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/ricirt/ping-queue/internal/domain"
)

// MockPingRepository is a hand-written, in-memory implementation of
// PingRepository used in unit tests.
type MockPingRepository struct {
	mu        sync.Mutex
	entries   map[string]*domain.QueueEntry
	targets   map[string]*domain.PingTarget
	weblogs   map[string]*domain.Weblog
	autoPings map[string]map[string]bool

	// Optional error overrides, set in tests to simulate failure paths.
	ListEntriesErr error
	SaveEntryErr   error
	RemoveEntryErr error
	AddEntryErr    error
	// Per-entry overrides keyed by entry ID.
	SaveEntryErrFor   map[string]error
	RemoveEntryErrFor map[string]error

	// Call counters for asserting that the store was (not) touched.
	ListCalls   int
	SaveCalls   int
	RemoveCalls int
}

func NewMockPingRepository() *MockPingRepository {
	return &MockPingRepository{
		entries:           make(map[string]*domain.QueueEntry),
		targets:           make(map[string]*domain.PingTarget),
		weblogs:           make(map[string]*domain.Weblog),
		autoPings:         make(map[string]map[string]bool),
		SaveEntryErrFor:   make(map[string]error),
		RemoveEntryErrFor: make(map[string]error),
	}
}

// Put stores a clone of e directly, bypassing AddEntry's duplicate check.
func (m *MockPingRepository) Put(e *domain.QueueEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.entries[e.ID] = &clone
}

// Entry returns a clone of the stored entry, or nil when absent.
func (m *MockPingRepository) Entry(id string) *domain.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	clone := *e
	return &clone
}

// Len returns the number of queued entries.
func (m *MockPingRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MockPingRepository) ListEntries(_ context.Context) ([]*domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListEntriesErr != nil {
		return nil, m.ListEntriesErr
	}
	result := make([]*domain.QueueEntry, 0, len(m.entries))
	for _, e := range m.entries {
		clone := *e
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].EntryTime.Equal(result[j].EntryTime) {
			return result[i].EntryTime.Before(result[j].EntryTime)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MockPingRepository) SaveEntry(_ context.Context, e *domain.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveEntryErr != nil {
		return m.SaveEntryErr
	}
	if err := m.SaveEntryErrFor[e.ID]; err != nil {
		return err
	}
	if existing, ok := m.entries[e.ID]; ok && existing.Attempts > e.Attempts {
		return domain.ErrConflict
	}
	clone := *e
	m.entries[e.ID] = &clone
	return nil
}

func (m *MockPingRepository) RemoveEntry(_ context.Context, e *domain.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls++
	if m.RemoveEntryErr != nil {
		return m.RemoveEntryErr
	}
	if err := m.RemoveEntryErrFor[e.ID]; err != nil {
		return err
	}
	delete(m.entries, e.ID)
	return nil
}

func (m *MockPingRepository) AddEntry(_ context.Context, e *domain.QueueEntry) (bool, error) {
	if m.AddEntryErr != nil {
		return false, m.AddEntryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[e.Target.ID]; !ok {
		return false, domain.ErrNotFound
	}
	if _, ok := m.weblogs[e.Weblog.ID]; !ok {
		return false, domain.ErrNotFound
	}
	for _, existing := range m.entries {
		if existing.Target.ID == e.Target.ID && existing.Weblog.ID == e.Weblog.ID {
			return false, nil
		}
	}
	clone := *e
	m.entries[e.ID] = &clone
	return true, nil
}

func (m *MockPingRepository) CreateTarget(_ context.Context, t *domain.PingTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.targets {
		if existing.PingURL == t.PingURL {
			return domain.ErrConflict
		}
	}
	clone := *t
	m.targets[t.ID] = &clone
	return nil
}

func (m *MockPingRepository) GetTarget(_ context.Context, id string) (*domain.PingTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (m *MockPingRepository) ListTargets(_ context.Context) ([]*domain.PingTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.PingTarget, 0, len(m.targets))
	for _, t := range m.targets {
		clone := *t
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MockPingRepository) CreateWeblog(_ context.Context, w *domain.Weblog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.weblogs {
		if existing.Handle == w.Handle {
			return domain.ErrConflict
		}
	}
	clone := *w
	m.weblogs[w.ID] = &clone
	return nil
}

func (m *MockPingRepository) GetWeblog(_ context.Context, id string) (*domain.Weblog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.weblogs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *w
	return &clone, nil
}

func (m *MockPingRepository) AddAutoPing(_ context.Context, weblogID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.weblogs[weblogID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := m.targets[targetID]; !ok {
		return domain.ErrNotFound
	}
	if m.autoPings[weblogID] == nil {
		m.autoPings[weblogID] = make(map[string]bool)
	}
	m.autoPings[weblogID][targetID] = true
	return nil
}

func (m *MockPingRepository) ListAutoPingTargets(_ context.Context, weblogID string) ([]*domain.PingTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.PingTarget
	for targetID := range m.autoPings[weblogID] {
		if t, ok := m.targets[targetID]; ok {
			clone := *t
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// compile-time check that MockPingRepository implements PingRepository
var _ PingRepository = (*MockPingRepository)(nil)
