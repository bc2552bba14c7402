//go:build integration

package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/persistence"
)

func newPostgresRepo(t *testing.T) TicketRepository {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
	return NewTicketRepository(pool)
}

func uniqueNumber() string {
	suffix := uuid.New()
	return "SUP-TEST-" + suffix.String()[:8]
}

func TestPostgresTicketLifecycle(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	ticket := sampleTicket(uniqueNumber())
	require.NoError(t, repo.Create(ctx, ticket))
	require.NotEmpty(t, ticket.ID)

	err := repo.Create(ctx, sampleTicket(ticket.TicketNumber))
	assert.ErrorIs(t, err, ErrTicketNumberTaken)

	exists, err := repo.ExistsByTicketNumber(ctx, ticket.TicketNumber)
	require.NoError(t, err)
	assert.True(t, exists)

	comment := "Versand vorbereitet"
	updated, entry, err := repo.ApplyTransition(ctx, ticket.ID, StatusChange{
		ToStatus: domain.TicketStatusShippingBack,
		Comment:  &comment,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusShippingBack, updated.Status)
	assert.Equal(t, domain.TicketStatusOpen, *entry.FromStatus)
	require.Len(t, updated.History, 1)
	assert.Equal(t, entry.ID, updated.History[0].ID)

	byNumber, err := repo.GetByTicketNumber(ctx, ticket.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, updated.Status, byNumber.Status)
}

func TestPostgresLookupMalformedID(t *testing.T) {
	repo := newPostgresRepo(t)
	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = repo.ApplyTransition(context.Background(), uuid.NewString(), StatusChange{ToStatus: domain.TicketStatusCompleted})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRacingTransitionsKeepStatusAndHistoryAligned(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	ticket := sampleTicket(uniqueNumber())
	require.NoError(t, repo.Create(ctx, ticket))

	targets := domain.StatusOrder[1:]
	var wg sync.WaitGroup
	errs := make(chan error, len(targets))
	for _, status := range targets {
		wg.Add(1)
		go func(status domain.TicketStatus) {
			defer wg.Done()
			_, _, err := repo.ApplyTransition(ctx, ticket.ID, StatusChange{ToStatus: status})
			errs <- err
		}(status)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, got.History, len(targets))
	last, ok := got.LatestEntry()
	require.True(t, ok)
	assert.Equal(t, got.Status, last.ToStatus)
	for i := 1; i < len(got.History); i++ {
		assert.Less(t, got.History[i-1].Seq, got.History[i].Seq)
		assert.Equal(t, got.History[i-1].ToStatus, *got.History[i].FromStatus)
	}
}
