package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/google/uuid"
)

// fakeClock is a manually advanced clock shared by a test's tracker and
// registry.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeStore is an in-memory TrackingStore that records every call and
// applies metric deltas the way the real sink's atomic upsert does.
// Error fields let tests inject persistence failures per operation.
type fakeStore struct {
	mu sync.Mutex

	sessions map[uuid.UUID]*domain.DMSession
	metrics  map[string]*domain.MetricTotal // keyed by sessionID/name
	events   []domain.EventRecord

	createCalls int
	endCalls    int

	failCreate error
	failEnd    error
	failAppend error
	failUpsert error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*domain.DMSession),
		metrics:  make(map[string]*domain.MetricTotal),
	}
}

func (s *fakeStore) CreateSession(_ context.Context, session *domain.DMSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.failCreate != nil {
		return s.failCreate
	}
	if _, ok := s.sessions[session.ID]; ok {
		return nil // idempotent, like ON CONFLICT DO NOTHING
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *fakeStore) EndSession(_ context.Context, tenantID string, sessionID uuid.UUID, reason domain.EndReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endCalls++
	if s.failEnd != nil {
		return s.failEnd
	}
	if sess, ok := s.sessions[sessionID]; ok && sess.TenantID == tenantID {
		now := time.Now()
		sess.EndedAt = &now
		r := reason
		sess.EndReason = &r
	}
	return nil
}

func (s *fakeStore) UpdateSessionCounters(_ context.Context, tenantID string, sessionID uuid.UUID, messageCount, userChars, botChars, avgResponseTimeMs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok && sess.TenantID == tenantID {
		sess.MessageCount = messageCount
		sess.TotalUserChars = userChars
		sess.TotalBotChars = botChars
		sess.AvgResponseTimeMs = avgResponseTimeMs
	}
	return nil
}

func (s *fakeStore) AppendEvent(_ context.Context, record *domain.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != nil {
		return s.failAppend
	}
	s.events = append(s.events, *record)
	return nil
}

func (s *fakeStore) UpsertMetric(_ context.Context, tenantID string, sessionID uuid.UUID, name string, deltaCount int64, deltaValue float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert != nil {
		return s.failUpsert
	}
	key := sessionID.String() + "/" + name
	m, ok := s.metrics[key]
	if !ok {
		m = &domain.MetricTotal{Name: name}
		s.metrics[key] = m
	}
	m.Count += deltaCount
	m.Value += deltaValue
	return nil
}

func (s *fakeStore) session(id uuid.UUID) *domain.DMSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		copied := *sess
		return &copied
	}
	return nil
}

func (s *fakeStore) metric(sessionID uuid.UUID, name string) domain.MetricTotal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.metrics[sessionID.String()+"/"+name]; ok {
		return *m
	}
	return domain.MetricTotal{Name: name}
}

func (s *fakeStore) eventsOfType(eventType domain.EventType) []domain.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EventRecord
	for _, rec := range s.events {
		if rec.Type == eventType {
			out = append(out, rec)
		}
	}
	return out
}

func (s *fakeStore) endSessionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endCalls
}

// newTestTracker builds an unstarted tracker on a fake clock and store.
// Tests drive the processor synchronously via drain.
func newTestTracker(cfg Config) (*Tracker, *fakeStore, *fakeClock) {
	clock := newFakeClock()
	store := newFakeStore()
	tr := newWithClock(store, cfg, clock.Now)
	return tr, store, clock
}

// drain synchronously processes everything currently buffered.
func drain(t *Tracker) {
	for {
		select {
		case ev := <-t.events:
			t.process(ev)
		default:
			return
		}
	}
}
