// Package intake implements the guided ticket submission wizard as an explicit
// state machine: a current step, one completeness predicate per step and pure
// navigation. It has no UI; supportctl drives it from a terminal.
package intake

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/display-support/internal/api/dto"
	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/domain"
)

// Step identifies a wizard page.
type Step int

const (
	StepCategory Step = iota
	StepProblem
	StepShipping
	StepAccount
	StepContact
	StepSummary
	StepConfirmation
)

// Steps lists every step in order.
var Steps = []Step{StepCategory, StepProblem, StepShipping, StepAccount, StepContact, StepSummary, StepConfirmation}

var stepNames = map[Step]string{
	StepCategory:     "category",
	StepProblem:      "problem",
	StepShipping:     "shipping",
	StepAccount:      "account",
	StepContact:      "contact",
	StepSummary:      "summary",
	StepConfirmation: "confirmation",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

var (
	// ErrSubmitInFlight is returned while a previous Submit has not returned.
	ErrSubmitInFlight = errors.New("submission already in progress")
	// ErrNotSubmittable is returned when Submit is called off the summary step,
	// without confirmation or after the ticket was created.
	ErrNotSubmittable = errors.New("wizard is not ready to submit")
	// ErrSessionReset is returned by a Submit whose session was reset before
	// the response arrived. The response is discarded.
	ErrSessionReset = errors.New("wizard was reset during submission")
)

// Submitter creates the ticket. The idempotency key is stable across retries
// of one wizard session.
type Submitter interface {
	CreateTicket(ctx context.Context, idempotencyKey string, req dto.CreateTicketRequest) (*dto.TicketResponse, error)
}

// State is the accumulated form input.
type State struct {
	Category                 domain.Category
	ProblemDetail            string
	HasRestarted             bool
	ShippingOption           string
	AccountNumber            string
	DisplayNumber            string
	DisplayLocation          string
	AlternateReturnAddress   string
	Email                    string
	AdditionalDeviceAffected bool
	DifferentShippingAddress bool
	ShippingAddress          string
	Salutation               domain.Salutation
	ContactPerson            string
	Confirmed                bool

	// TicketNumber is set once the submission succeeded.
	TicketNumber string
}

// Wizard is safe for use from one session; the mutex only guards against a
// second Submit while the first is in flight.
type Wizard struct {
	mu         sync.Mutex
	catalog    catalog.Provider
	submitter  Submitter
	logger     *zap.Logger
	predicates map[Step]func(State) bool

	step       Step
	state      State
	submitting bool
	lastErr    error
	key        string
	generation uint64
}

// NewWizard builds a wizard positioned on the category step.
func NewWizard(provider catalog.Provider, submitter Submitter, logger *zap.Logger) *Wizard {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Wizard{catalog: provider, submitter: submitter, logger: logger}
	w.predicates = map[Step]func(State) bool{
		StepCategory: func(s State) bool { return len(missingCategory(s)) == 0 },
		StepProblem:  func(s State) bool { return len(w.missingProblem(s)) == 0 },
		StepShipping: func(s State) bool { return len(w.missingShipping(s)) == 0 },
		StepAccount:  func(s State) bool { return len(missingAccount(s)) == 0 },
		StepContact:  func(s State) bool { return len(missingContact(s)) == 0 },
		StepSummary:  func(s State) bool { return s.Confirmed },
	}
	w.key = uuid.NewString()
	return w
}

// Current returns the active step.
func (w *Wizard) Current() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// State returns a copy of the accumulated input.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastError is the error of the most recent failed Submit, cleared on success.
func (w *Wizard) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Complete reports whether step's predicate holds for the current state.
func (w *Wizard) Complete(step Step) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.complete(step)
}

func (w *Wizard) complete(step Step) bool {
	pred, ok := w.predicates[step]
	return ok && pred(w.state)
}

// Missing lists the JSON field names that keep step from completing.
func (w *Wizard) Missing(step Step) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch step {
	case StepCategory:
		return missingCategory(w.state)
	case StepProblem:
		return w.missingProblem(w.state)
	case StepShipping:
		return w.missingShipping(w.state)
	case StepAccount:
		return missingAccount(w.state)
	case StepContact:
		return missingContact(w.state)
	case StepSummary:
		if !w.state.Confirmed {
			return []string{"confirmed"}
		}
	}
	return nil
}

// Next advances one step when the current step is complete. The summary step
// only advances through Submit.
func (w *Wizard) Next() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step >= StepSummary || !w.complete(w.step) {
		return false
	}
	w.step++
	return true
}

// Prev goes back one step. Confirmation is terminal.
func (w *Wizard) Prev() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepCategory || w.step == StepConfirmation || w.submitting {
		return false
	}
	w.step--
	return true
}

// GoTo jumps to step, as the summary's edit links do. Moving forward requires
// every step before the target to be complete; confirmation is reachable only
// through Submit.
func (w *Wizard) GoTo(step Step) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if step < StepCategory || step >= StepConfirmation || w.step == StepConfirmation || w.submitting {
		return false
	}
	for s := StepCategory; s < step; s++ {
		if !w.complete(s) {
			return false
		}
	}
	w.step = step
	return true
}

// Reset starts a fresh request with a new idempotency key.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepCategory
	w.state = State{}
	w.lastErr = nil
	w.submitting = false
	w.key = uuid.NewString()
	w.generation++
}

// SetCategory selects a category. Switching to a different category clears
// the problem chosen from the previous category's catalog.
func (w *Wizard) SetCategory(category domain.Category) {
	w.edit(func(s *State) {
		if s.Category != category {
			s.ProblemDetail = ""
		}
		s.Category = category
	})
}

// SetProblemDetail selects a problem from the current category.
func (w *Wizard) SetProblemDetail(problemID string) {
	w.edit(func(s *State) { s.ProblemDetail = problemID })
}

// SetHasRestarted records whether the display was restarted.
func (w *Wizard) SetHasRestarted(v bool) {
	w.edit(func(s *State) { s.HasRestarted = v })
}

// SetShippingOption selects a shipping option by catalog id.
func (w *Wizard) SetShippingOption(id string) {
	w.edit(func(s *State) { s.ShippingOption = id })
}

// SetAccountNumber sets the customer account number.
func (w *Wizard) SetAccountNumber(v string) {
	w.edit(func(s *State) { s.AccountNumber = v })
}

// SetDisplayNumber sets the affected display number.
func (w *Wizard) SetDisplayNumber(v string) {
	w.edit(func(s *State) { s.DisplayNumber = v })
}

// SetDisplayLocation sets where the display is installed.
func (w *Wizard) SetDisplayLocation(v string) {
	w.edit(func(s *State) { s.DisplayLocation = v })
}

// SetAlternateReturnAddress sets the optional return address.
func (w *Wizard) SetAlternateReturnAddress(v string) {
	w.edit(func(s *State) { s.AlternateReturnAddress = v })
}

// SetEmail sets the contact email.
func (w *Wizard) SetEmail(v string) {
	w.edit(func(s *State) { s.Email = v })
}

// SetAdditionalDeviceAffected records that another device shows the problem.
func (w *Wizard) SetAdditionalDeviceAffected(v bool) {
	w.edit(func(s *State) { s.AdditionalDeviceAffected = v })
}

// SetDifferentShippingAddress requests shipping to another address.
func (w *Wizard) SetDifferentShippingAddress(v bool) {
	w.edit(func(s *State) { s.DifferentShippingAddress = v })
}

// SetShippingAddress sets the alternative shipping address.
func (w *Wizard) SetShippingAddress(v string) {
	w.edit(func(s *State) { s.ShippingAddress = v })
}

// SetSalutation sets the contact salutation.
func (w *Wizard) SetSalutation(v domain.Salutation) {
	w.edit(func(s *State) { s.Salutation = v })
}

// SetContactPerson sets the contact name.
func (w *Wizard) SetContactPerson(v string) {
	w.edit(func(s *State) { s.ContactPerson = v })
}

// SetConfirmed sets the summary's explicit confirmation flag.
func (w *Wizard) SetConfirmed(v bool) {
	w.edit(func(s *State) { s.Confirmed = v })
}

// edit ignores changes once the ticket exists or while it is being created.
func (w *Wizard) edit(fn func(*State)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting || w.step == StepConfirmation {
		return
	}
	fn(&w.state)
}

// CanSubmit reports whether Submit would issue the request.
func (w *Wizard) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canSubmit()
}

func (w *Wizard) canSubmit() bool {
	if w.step != StepSummary || w.submitting || w.state.TicketNumber != "" {
		return false
	}
	for s := StepCategory; s <= StepSummary; s++ {
		if !w.complete(s) {
			return false
		}
	}
	return true
}

// Submit sends the whole payload once. On success the ticket number is stored
// and the wizard moves to confirmation; on failure it stays on the summary with
// the state intact and LastError set. A Reset while the request is in flight
// discards its result.
func (w *Wizard) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return ErrSubmitInFlight
	}
	if !w.canSubmit() {
		w.mu.Unlock()
		return ErrNotSubmittable
	}
	w.submitting = true
	payload := buildPayload(w.state)
	key := w.key
	generation := w.generation
	w.mu.Unlock()

	resp, err := w.submitter.CreateTicket(ctx, key, payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation != generation {
		w.logger.Info("discarding submission result of a reset session", zap.Error(err))
		return ErrSessionReset
	}
	w.submitting = false
	if err != nil {
		w.lastErr = err
		w.logger.Warn("ticket submission failed", zap.Error(err))
		return err
	}
	w.lastErr = nil
	w.state.TicketNumber = resp.TicketNumber
	w.step = StepConfirmation
	return nil
}

// Payload builds the creation request from the current state.
func (w *Wizard) Payload() dto.CreateTicketRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return buildPayload(w.state)
}

func buildPayload(s State) dto.CreateTicketRequest {
	return dto.CreateTicketRequest{
		Category:                 s.Category,
		ProblemDetail:            s.ProblemDetail,
		HasRestarted:             s.HasRestarted,
		ShippingOption:           s.ShippingOption,
		AccountNumber:            strings.TrimSpace(s.AccountNumber),
		DisplayNumber:            strings.TrimSpace(s.DisplayNumber),
		DisplayLocation:          strings.TrimSpace(s.DisplayLocation),
		AlternateReturnAddress:   optional(s.AlternateReturnAddress),
		Email:                    strings.TrimSpace(s.Email),
		AdditionalDeviceAffected: s.AdditionalDeviceAffected,
		DifferentShippingAddress: s.DifferentShippingAddress,
		ShippingAddress:          optional(s.ShippingAddress),
		Salutation:               s.Salutation,
		ContactPerson:            strings.TrimSpace(s.ContactPerson),
	}
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func missingCategory(s State) []string {
	if !s.Category.Valid() {
		return []string{"category"}
	}
	return nil
}

func (w *Wizard) missingProblem(s State) []string {
	var missing []string
	if s.ProblemDetail == "" || (w.catalog != nil && !w.catalog.HasProblem(s.Category, s.ProblemDetail)) {
		missing = append(missing, "problemDetail")
	}
	if !s.HasRestarted {
		missing = append(missing, "hasRestarted")
	}
	return missing
}

func (w *Wizard) missingShipping(s State) []string {
	if s.ShippingOption == "" || (w.catalog != nil && !w.catalog.HasShippingOption(s.ShippingOption)) {
		return []string{"shippingOption"}
	}
	return nil
}

func missingAccount(s State) []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"accountNumber", s.AccountNumber},
		{"displayNumber", s.DisplayNumber},
		{"displayLocation", s.DisplayLocation},
		{"email", s.Email},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// missingContact does not require a shipping address even when a different
// one was requested; a blank one is allowed through.
func missingContact(s State) []string {
	var missing []string
	if !s.Salutation.Valid() {
		missing = append(missing, "salutation")
	}
	if strings.TrimSpace(s.ContactPerson) == "" {
		missing = append(missing, "contactPerson")
	}
	return missing
}
