package repository

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/display-support/internal/domain"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newBoltRepo(t *testing.T) *BoltTicketRepository {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "tickets.db"), 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &stepClock{now: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)}
	repo, err := NewBoltTicketRepository(db, clock.Now)
	require.NoError(t, err)
	return repo
}

func sampleTicket(number string) *domain.Ticket {
	return &domain.Ticket{
		TicketNumber:    number,
		Category:        domain.CategoryHardware,
		ProblemDetail:   "bootloop",
		ShippingOption:  "avantor-box",
		AccountNumber:   "ACC-1",
		DisplayNumber:   "D-42",
		DisplayLocation: "Lobby",
		Email:           "kunde@example.com",
		Salutation:      domain.SalutationFrau,
		ContactPerson:   "Erika Muster",
		Status:          domain.InitialStatus,
	}
}

func TestBoltCreateAndLookup(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	ticket := sampleTicket("SUP-20240315-1234")
	require.NoError(t, repo.Create(ctx, ticket))
	require.NotEmpty(t, ticket.ID)
	assert.False(t, ticket.CreatedAt.IsZero())

	exists, err := repo.ExistsByTicketNumber(ctx, "SUP-20240315-1234")
	require.NoError(t, err)
	assert.True(t, exists)

	byID, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	byNumber, err := repo.GetByTicketNumber(ctx, ticket.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, byID, byNumber)
	assert.Equal(t, domain.TicketStatusOpen, byID.Status)
	assert.Empty(t, byID.History)
}

func TestBoltCreateRejectsDuplicateNumber(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleTicket("SUP-20240315-1234")))
	err := repo.Create(ctx, sampleTicket("SUP-20240315-1234"))
	assert.ErrorIs(t, err, ErrTicketNumberTaken)

	all, err := repo.List(ctx, TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBoltLookupMissing(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByTicketNumber(ctx, "SUP-20240315-0000")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = repo.ApplyTransition(ctx, "nope", StatusChange{ToStatus: domain.TicketStatusCompleted})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltApplyTransitionAppendsHistory(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	ticket := sampleTicket("SUP-20240315-2000")
	require.NoError(t, repo.Create(ctx, ticket))

	comment := "Gerät eingegangen"
	staff := "staff-1"
	updated, entry, err := repo.ApplyTransition(ctx, ticket.ID, StatusChange{
		ToStatus:    domain.TicketStatusRepairInProgress,
		Comment:     &comment,
		ChangedByID: &staff,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRepairInProgress, updated.Status)
	require.NotNil(t, entry.FromStatus)
	assert.Equal(t, domain.TicketStatusOpen, *entry.FromStatus)
	assert.Equal(t, domain.TicketStatusRepairInProgress, entry.ToStatus)
	assert.Equal(t, &comment, entry.Comment)
	assert.Equal(t, entry.CreatedAt, updated.UpdatedAt)
	require.Len(t, updated.History, 1)
	assert.Equal(t, *entry, updated.History[0])

	// Same-status transitions are recorded too.
	_, second, err := repo.ApplyTransition(ctx, ticket.ID, StatusChange{ToStatus: domain.TicketStatusRepairInProgress})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRepairInProgress, *second.FromStatus)

	// Backwards moves are allowed.
	final, third, err := repo.ApplyTransition(ctx, ticket.ID, StatusChange{ToStatus: domain.TicketStatusOpen})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, final.Status)
	assert.Equal(t, domain.TicketStatusRepairInProgress, *third.FromStatus)

	require.Len(t, final.History, 3)
	assert.Equal(t, *entry, final.History[0])
	assert.Equal(t, *second, final.History[1])
	assert.Equal(t, *third, final.History[2])
	assert.Less(t, final.History[0].Seq, final.History[1].Seq)

	listed, err := repo.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, final.History, listed)
	last, ok := final.LatestEntry()
	require.True(t, ok)
	assert.Equal(t, final.Status, last.ToStatus)
}

func TestBoltHistoryOrdersTiesByInsertion(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "tickets.db"), 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	frozen := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	repo, err := NewBoltTicketRepository(db, func() time.Time { return frozen })
	require.NoError(t, err)
	ctx := context.Background()

	ticket := sampleTicket("SUP-20240315-3000")
	require.NoError(t, repo.Create(ctx, ticket))
	for _, status := range domain.StatusOrder[1:] {
		_, _, err := repo.ApplyTransition(ctx, ticket.ID, StatusChange{ToStatus: status})
		require.NoError(t, err)
	}

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, got.History, len(domain.StatusOrder)-1)
	for i, entry := range got.History {
		assert.Equal(t, domain.StatusOrder[i+1], entry.ToStatus)
		assert.Equal(t, domain.StatusOrder[i], *entry.FromStatus)
	}
}

func TestBoltHistoryFollowsInsertionWhenClockStepsBack(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "tickets.db"), 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(5 * time.Second), base.Add(time.Second)}
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return now
	}
	repo, err := NewBoltTicketRepository(db, clock)
	require.NoError(t, err)
	ctx := context.Background()

	ticket := sampleTicket("SUP-20240315-4000")
	require.NoError(t, repo.Create(ctx, ticket))
	_, first, err := repo.ApplyTransition(ctx, ticket.ID, StatusChange{ToStatus: domain.TicketStatusInProgress})
	require.NoError(t, err)
	_, second, err := repo.ApplyTransition(ctx, ticket.ID, StatusChange{ToStatus: domain.TicketStatusCompleted})
	require.NoError(t, err)
	require.True(t, second.CreatedAt.Before(first.CreatedAt))

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, first.ID, got.History[0].ID)
	assert.Equal(t, second.ID, got.History[1].ID)

	last, ok := got.LatestEntry()
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusCompleted, got.Status)
	assert.Equal(t, got.Status, last.ToStatus)

	listed, err := repo.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, got.History, listed)
}

func TestBoltListFiltersAndOrders(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		ticket := sampleTicket(fmt.Sprintf("SUP-20240315-%04d", 1000+i))
		ticket.ContactPerson = fmt.Sprintf("Person %d", i)
		require.NoError(t, repo.Create(ctx, ticket))
		ids = append(ids, ticket.ID)
	}
	_, _, err := repo.ApplyTransition(ctx, ids[1], StatusChange{ToStatus: domain.TicketStatusCompleted})
	require.NoError(t, err)

	all, err := repo.List(ctx, TicketFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ids[3], all[0].ID)
	assert.Equal(t, ids[0], all[3].ID)

	completed, err := repo.List(ctx, TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusCompleted}})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, ids[1], completed[0].ID)

	term := "person 2"
	searched, err := repo.List(ctx, TicketFilter{SearchTerm: &term})
	require.NoError(t, err)
	require.Len(t, searched, 1)
	assert.Equal(t, ids[2], searched[0].ID)

	number := "1003"
	byNumber, err := repo.List(ctx, TicketFilter{SearchTerm: &number})
	require.NoError(t, err)
	require.Len(t, byNumber, 1)

	page, err := repo.List(ctx, TicketFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	beyond, err := repo.List(ctx, TicketFilter{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)

	huge, err := repo.List(ctx, TicketFilter{Limit: math.MaxInt, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, huge, 3)
}
