package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/allocation-service/pkg/database"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type published struct {
	key     string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{key: routingKey, payload: payload})
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.key
	}
	return out
}

type testEnv struct {
	store *repository.Store
	clock *fakeClock
	pub   *recordingPublisher
	svc   *Coordinator
}

const testTTL = 15 * time.Minute

func newEnv(t *testing.T, policy StaticPolicy) *testEnv {
	t.Helper()
	if policy.TTL == 0 {
		policy.TTL = testTTL
	}
	db, err := database.OpenSQLite(database.MemoryDSN())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	store := repository.NewGormStore(db, 2*time.Second)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}
	svc := NewCoordinator(store, Options{
		Policy:     policy,
		Clock:      clock,
		Retry:      RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond},
		Publisher:  pub,
		SweepBatch: 50,
	})
	return &testEnv{store: store, clock: clock, pub: pub, svc: svc}
}

func intPtr(n int) *int    { return &n }
func uintPtr(n uint) *uint { return &n }

func (e *testEnv) tier(t *testing.T, capacity *int) *models.TicketTier {
	t.Helper()
	tier, err := e.svc.CreateTier(context.Background(), &models.TicketTier{EventID: 1, Name: "General", Capacity: capacity, IsPublic: true})
	require.NoError(t, err)
	return tier
}

func (e *testEnv) table(t *testing.T) *models.Table {
	t.Helper()
	table, err := e.svc.CreateTable(context.Background(), &models.Table{Label: "T1"})
	require.NoError(t, err)
	return table
}

func (e *testEnv) reload(t *testing.T, tierID uint) *models.TicketTier {
	t.Helper()
	tier, err := e.store.Tiers.FindByID(context.Background(), tierID)
	require.NoError(t, err)
	return tier
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error: %v", err)
}
