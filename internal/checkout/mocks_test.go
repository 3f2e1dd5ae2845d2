package checkout

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/cache"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
)

// mockRepo implements RepoInterface in memory.
type mockRepo struct {
	mu        sync.Mutex
	sessions  map[string]*Session // by idempotency key
	events    []*OutboxEvent
	nextEvent int64
	processed map[int64]bool

	createErr   error
	completeErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		sessions:  make(map[string]*Session),
		processed: make(map[int64]bool),
	}
}

func (m *mockRepo) GetSessionByIdempotencyKey(_ context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrIdempotencyKeyNotFound
	}
	out := *s
	return &out, nil
}

func (m *mockRepo) CreateSession(_ context.Context, session *Session) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *session
	m.sessions[session.IdempotencyKey] = &s
	return nil
}

func (m *mockRepo) CompleteSession(_ context.Context, sessionID, checkoutRef string, degraded bool, eventPayload []byte) error {
	if m.completeErr != nil {
		return m.completeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == sessionID {
			s.Status = SessionConverted
			s.CheckoutRef = checkoutRef
			s.Degraded = degraded
		}
	}
	m.nextEvent++
	m.events = append(m.events, &OutboxEvent{
		ID:          m.nextEvent,
		AggregateID: sessionID,
		EventType:   "checkout.prepared",
		Payload:     eventPayload,
	})
	return nil
}

func (m *mockRepo) FailSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == sessionID {
			s.Status = SessionFailed
		}
	}
	return nil
}

func (m *mockRepo) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*OutboxEvent
	for _, e := range m.events {
		if m.processed[e.ID] {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockRepo) MarkEventAsProcessed(_ context.Context, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[eventID] = true
	return nil
}

func (m *mockRepo) Close() error                     { return nil }
func (m *mockRepo) RunMigrations(*Credentials) error { return nil }

func (m *mockRepo) sessionByID(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == sessionID {
			out := *s
			return &out
		}
	}
	return nil
}

// mockBridge returns a fixed URL or a fixed error.
type mockBridge struct {
	url    string
	err    error
	called int
}

func (m *mockBridge) CreateCheckoutSession(context.Context, *CartSnapshot) (string, error) {
	m.called++
	if m.err != nil {
		return "", m.err
	}
	return m.url, nil
}

// fakeWriter captures kafka messages.
type fakeWriter struct {
	err  error
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

// mapCache is a no-frills cache.CartCache for wiring the cart service.
type mapCache struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func newMapCache() *mapCache {
	return &mapCache{carts: make(map[string]*domain.Cart)}
}

func (m *mapCache) Get(_ context.Context, ownerKey string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[ownerKey]; ok {
		return c, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *mapCache) Set(_ context.Context, ownerKey string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[ownerKey] = cart
	return nil
}

func (m *mapCache) Delete(_ context.Context, ownerKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, ownerKey)
	return nil
}
