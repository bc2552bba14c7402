package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/display-support/internal/cache"
	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/events"
	"github.com/spec-kit/display-support/internal/repository"
	"github.com/spec-kit/display-support/internal/tracking"
)

var testStaff = &domain.StaffMember{ID: "staff-1", Name: "Anna", Role: domain.StaffRoleAgent, Active: true}

type fixedGenerator struct {
	mu      sync.Mutex
	numbers []string
	calls   int
}

func (g *fixedGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.numbers) {
		i = len(g.numbers) - 1
	}
	g.calls++
	return g.numbers[i]
}

// blindRepo hides existing numbers from the pre-check so the store's
// uniqueness constraint is the one that fires.
type blindRepo struct {
	repository.TicketRepository
}

func (blindRepo) ExistsByTicketNumber(context.Context, string) (bool, error) {
	return false, nil
}

type spyRepo struct {
	repository.TicketRepository
	applyCalls int
	applyErr   error
}

func (r *spyRepo) ApplyTransition(ctx context.Context, id string, change repository.StatusChange) (*domain.Ticket, *domain.StatusHistoryEntry, error) {
	r.applyCalls++
	if r.applyErr != nil {
		return nil, nil, r.applyErr
	}
	return r.TicketRepository.ApplyTransition(ctx, id, change)
}

// stallingRepo blocks its first Create until the caller's context ends.
type stallingRepo struct {
	repository.TicketRepository
	mu      sync.Mutex
	stalled bool
}

func (r *stallingRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	first := !r.stalled
	r.stalled = true
	r.mu.Unlock()
	if first {
		<-ctx.Done()
		return ctx.Err()
	}
	return r.TicketRepository.Create(ctx, ticket)
}

// memTrackingCache mirrors the redis cache: an invalidation raises a
// per-number floor and older projections are not stored.
type memTrackingCache struct {
	mu        sync.Mutex
	entries   map[string]tracking.Projection
	floors    map[string]int
	getErr    error
	gets      int
	sets      int
	beforeSet func()
}

func newMemTrackingCache() *memTrackingCache {
	return &memTrackingCache{entries: map[string]tracking.Projection{}, floors: map[string]int{}}
}

func (c *memTrackingCache) Get(_ context.Context, number string) (*tracking.Projection, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	p, ok := c.entries[number]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *memTrackingCache) Set(_ context.Context, number string, p tracking.Projection) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if floor, ok := c.floors[number]; ok && p.Version() < floor {
		return nil
	}
	c.entries[number] = p
	return nil
}

func (c *memTrackingCache) Invalidate(_ context.Context, number string, version int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version > c.floors[number] {
		c.floors[number] = version
	}
	delete(c.entries, number)
	return nil
}

// memIdempotency fails on a done context the way a network-backed store does.
type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: map[string]string{}}
}

func (s *memIdempotency) Reserve(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := s.keys[key]
	if !ok {
		s.keys[key] = ""
		return "", true, nil
	}
	if v == "" {
		return "", false, cache.ErrRequestInFlight
	}
	return v, false, nil
}

func (s *memIdempotency) Complete(ctx context.Context, key, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.keys[key] = ticketID
	return nil
}

func (s *memIdempotency) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(s.keys, key)
	return nil
}

func newBoltStore(t *testing.T) *repository.BoltTicketRepository {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "tickets.db"), 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo, err := repository.NewBoltTicketRepository(db, nil)
	require.NoError(t, err)
	return repo
}

func testCatalog(t *testing.T) catalog.Provider {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func newTestService(t *testing.T, mutate func(*TicketDependencies)) (*TicketService, *repository.BoltTicketRepository) {
	t.Helper()
	store := newBoltStore(t)
	deps := TicketDependencies{
		TicketRepo: store,
		Catalog:    testCatalog(t),
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Logger:     zap.NewNop(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewTicketService(deps), store
}

func validInput() TicketCreateInput {
	return TicketCreateInput{
		Category:        domain.CategoryHardware,
		ProblemDetail:   "bootloop",
		HasRestarted:    true,
		ShippingOption:  "avantor-box",
		AccountNumber:   "ACC-1",
		DisplayNumber:   "DSP-1",
		DisplayLocation: "Street 1, City",
		Email:           "a@b.de",
		Salutation:      domain.SalutationHerr,
		ContactPerson:   "Max Mustermann",
	}
}

func strPtr(s string) *string { return &s }
