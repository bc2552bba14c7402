package intake

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/display-support/internal/api/dto"
	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/domain"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	keys    []string
	last    dto.CreateTicketRequest
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeSubmitter) CreateTicket(_ context.Context, key string, req dto.CreateTicketRequest) (*dto.TicketResponse, error) {
	f.mu.Lock()
	f.calls++
	f.keys = append(f.keys, key)
	f.last = req
	err := f.err
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if err != nil {
		return nil, err
	}
	return &dto.TicketResponse{TicketNumber: "SUP-20240315-1234", Status: domain.TicketStatusOpen}, nil
}

func newWizard(t *testing.T, sub Submitter) *Wizard {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return NewWizard(c, sub, nil)
}

// fill completes every step up to and including step.
func fill(w *Wizard, through Step) {
	if through >= StepCategory {
		w.SetCategory(domain.CategoryHardware)
	}
	if through >= StepProblem {
		w.SetProblemDetail("bootloop")
		w.SetHasRestarted(true)
	}
	if through >= StepShipping {
		w.SetShippingOption("avantor-box")
	}
	if through >= StepAccount {
		w.SetAccountNumber("ACC-1")
		w.SetDisplayNumber("DSP-1")
		w.SetDisplayLocation("Street 1, City")
		w.SetEmail("a@b.de")
	}
	if through >= StepContact {
		w.SetSalutation(domain.SalutationHerr)
		w.SetContactPerson("Max Mustermann")
	}
}

func advanceTo(t *testing.T, w *Wizard, step Step) {
	t.Helper()
	for w.Current() < step {
		require.True(t, w.Next(), "stuck on %s", w.Current())
	}
}

func TestNextIsNoOpWhileStepIncomplete(t *testing.T) {
	for _, step := range []Step{StepCategory, StepProblem, StepShipping, StepAccount, StepContact} {
		t.Run(step.String(), func(t *testing.T) {
			w := newWizard(t, &fakeSubmitter{})
			if step > StepCategory {
				fill(w, step-1)
				advanceTo(t, w, step)
			}
			assert.False(t, w.Next())
			assert.Equal(t, step, w.Current())
			assert.NotEmpty(t, w.Missing(step))
		})
	}
}

func TestSummaryNeverAdvancesThroughNext(t *testing.T) {
	w := newWizard(t, &fakeSubmitter{})
	fill(w, StepContact)
	advanceTo(t, w, StepSummary)
	w.SetConfirmed(true)
	assert.False(t, w.Next())
	assert.Equal(t, StepSummary, w.Current())
}

func TestProblemStepRequiresRestartConfirmation(t *testing.T) {
	w := newWizard(t, &fakeSubmitter{})
	fill(w, StepCategory)
	require.True(t, w.Next())

	w.SetProblemDetail("bootloop")
	assert.False(t, w.Next())
	assert.Equal(t, []string{"hasRestarted"}, w.Missing(StepProblem))

	w.SetHasRestarted(true)
	assert.True(t, w.Next())
}

func TestChangingCategoryClearsProblem(t *testing.T) {
	w := newWizard(t, &fakeSubmitter{})
	fill(w, StepProblem)
	advanceTo(t, w, StepShipping)

	w.SetCategory(domain.CategoryHardware)
	assert.Equal(t, "bootloop", w.State().ProblemDetail)

	w.SetCategory(domain.CategoryNetwork)
	assert.Empty(t, w.State().ProblemDetail)
	assert.False(t, w.Complete(StepProblem))
	assert.False(t, w.GoTo(StepSummary))
}

func TestProblemMustBelongToCategory(t *testing.T) {
	w := newWizard(t, &fakeSubmitter{})
	w.SetCategory(domain.CategorySoftware)
	w.SetProblemDetail("bootloop")
	w.SetHasRestarted(true)
	assert.False(t, w.Complete(StepProblem))
}

func TestAccountFieldsAreTrimmed(t *testing.T) {
	w := newWizard(t, &fakeSubmitter{})
	fill(w, StepAccount)
	w.SetEmail("   ")
	assert.Equal(t, []string{"email"}, w.Missing(StepAccount))
}

// A requested different shipping address may be left blank.
func TestBlankDifferentShippingAddressPasses(t *testing.T) {
	w := newWizard(t, &fakeSubmitter{})
	fill(w, StepContact)
	w.SetDifferentShippingAddress(true)
	advanceTo(t, w, StepContact)
	assert.True(t, w.Next())
	assert.Nil(t, w.Payload().ShippingAddress)
	assert.True(t, w.Payload().DifferentShippingAddress)
}

func TestSubmitSuccess(t *testing.T) {
	sub := &fakeSubmitter{}
	w := newWizard(t, sub)
	fill(w, StepContact)
	w.SetAlternateReturnAddress("  ")
	advanceTo(t, w, StepSummary)

	assert.False(t, w.CanSubmit())
	assert.ErrorIs(t, w.Submit(context.Background()), ErrNotSubmittable)
	assert.Equal(t, 0, sub.calls)

	w.SetConfirmed(true)
	require.True(t, w.CanSubmit())
	require.NoError(t, w.Submit(context.Background()))

	assert.Equal(t, StepConfirmation, w.Current())
	assert.Equal(t, "SUP-20240315-1234", w.State().TicketNumber)
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, "ACC-1", sub.last.AccountNumber)
	assert.Nil(t, sub.last.AlternateReturnAddress)

	assert.ErrorIs(t, w.Submit(context.Background()), ErrNotSubmittable)
	assert.Equal(t, 1, sub.calls)
	assert.False(t, w.Prev())
	assert.False(t, w.GoTo(StepAccount))
}

func TestSubmitFailureKeepsState(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("network down")}
	w := newWizard(t, sub)
	fill(w, StepContact)
	advanceTo(t, w, StepSummary)
	w.SetConfirmed(true)
	before := w.State()

	err := w.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StepSummary, w.Current())
	assert.Equal(t, before, w.State())
	assert.EqualError(t, w.LastError(), "network down")

	sub.err = nil
	require.NoError(t, w.Submit(context.Background()))
	assert.Nil(t, w.LastError())
	require.Len(t, sub.keys, 2)
	assert.Equal(t, sub.keys[0], sub.keys[1])
}

func TestSubmitRejectsSecondInFlightCall(t *testing.T) {
	sub := &fakeSubmitter{release: make(chan struct{}), started: make(chan struct{})}
	w := newWizard(t, sub)
	fill(w, StepContact)
	advanceTo(t, w, StepSummary)
	w.SetConfirmed(true)

	done := make(chan error, 1)
	go func() { done <- w.Submit(context.Background()) }()
	<-sub.started

	assert.ErrorIs(t, w.Submit(context.Background()), ErrSubmitInFlight)
	assert.False(t, w.CanSubmit())
	close(sub.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, sub.calls)
}

func TestGoToAndReset(t *testing.T) {
	sub := &fakeSubmitter{}
	w := newWizard(t, sub)
	assert.False(t, w.GoTo(StepSummary))

	fill(w, StepContact)
	require.True(t, w.GoTo(StepSummary))
	require.True(t, w.GoTo(StepAccount))
	assert.Equal(t, StepAccount, w.Current())
	assert.False(t, w.GoTo(StepConfirmation))
	require.True(t, w.GoTo(StepSummary))
	w.SetConfirmed(true)
	require.NoError(t, w.Submit(context.Background()))

	w.Reset()
	assert.Equal(t, StepCategory, w.Current())
	assert.Equal(t, State{}, w.State())

	fill(w, StepContact)
	require.True(t, w.GoTo(StepSummary))
	w.SetConfirmed(true)
	require.NoError(t, w.Submit(context.Background()))
	require.Len(t, sub.keys, 2)
	assert.NotEqual(t, sub.keys[0], sub.keys[1])
}

func TestResetDuringSubmitDiscardsLateResponse(t *testing.T) {
	sub := &fakeSubmitter{release: make(chan struct{}), started: make(chan struct{})}
	w := newWizard(t, sub)
	fill(w, StepContact)
	advanceTo(t, w, StepSummary)
	w.SetConfirmed(true)

	done := make(chan error, 1)
	go func() { done <- w.Submit(context.Background()) }()
	<-sub.started

	w.Reset()
	w.SetCategory(domain.CategorySoftware)

	close(sub.release)
	assert.ErrorIs(t, <-done, ErrSessionReset)

	state := w.State()
	assert.Empty(t, state.TicketNumber)
	assert.Equal(t, domain.CategorySoftware, state.Category)
	assert.Equal(t, StepCategory, w.Current())
	assert.NoError(t, w.LastError())
	assert.True(t, w.Next())
}
