package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/intake"
)

type fieldKind int

const (
	fieldText fieldKind = iota
	fieldChoice
	fieldToggle
)

// formField is one editable line of a wizard step. Choice and toggle fields
// cycle with left/right, text fields take typed runes.
type formField struct {
	label   string
	kind    fieldKind
	options []choice
	get     func(intake.State) string
	set     func(string)
}

// submitDoneMsg carries the result of the background Submit call.
type submitDoneMsg struct {
	err error
}

// wizardModel drives an intake.Wizard from an interactive terminal.
type wizardModel struct {
	ctx     context.Context
	wizard  *intake.Wizard
	catalog catalog.Provider
	timeout time.Duration

	cursor     int
	notice     string
	submitting bool
	aborted    bool
}

func newWizardModel(ctx context.Context, w *intake.Wizard, cat catalog.Provider, timeout time.Duration) wizardModel {
	return wizardModel{ctx: ctx, wizard: w, catalog: cat, timeout: timeout}
}

func (m wizardModel) Init() tea.Cmd {
	return nil
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case submitDoneMsg:
		m.submitting = false
		if msg.err != nil {
			m.notice = "Submission failed: " + describeError(msg.err) + ". Press enter to retry."
			return m, nil
		}
		m.notice = ""
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.aborted = true
			return m, tea.Quit
		}
		if m.submitting {
			return m, nil
		}
		switch m.wizard.Current() {
		case intake.StepConfirmation:
			return m, tea.Quit
		case intake.StepSummary:
			return m.updateSummary(msg)
		}
		return m.updateForm(msg), nil
	}
	return m, nil
}

func (m wizardModel) updateSummary(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.wizard.SetConfirmed(true)
		m.submitting = true
		m.notice = "Submitting..."
		return m, m.submit()
	case tea.KeyEsc:
		m.wizard.Prev()
		m.cursor = 0
	}
	return m, nil
}

func (m wizardModel) submit() tea.Cmd {
	ctx, w, timeout := m.ctx, m.wizard, m.timeout
	return func() tea.Msg {
		submitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return submitDoneMsg{err: w.Submit(submitCtx)}
	}
}

func (m wizardModel) updateForm(msg tea.KeyMsg) wizardModel {
	step := m.wizard.Current()
	fields := m.fields(step)
	if m.cursor >= len(fields) {
		m.cursor = len(fields) - 1
	}
	field := fields[m.cursor]

	switch msg.Type {
	case tea.KeyUp, tea.KeyShiftTab:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown, tea.KeyTab:
		if m.cursor < len(fields)-1 {
			m.cursor++
		}
	case tea.KeyLeft:
		m.cycle(field, -1)
	case tea.KeyRight:
		m.cycle(field, 1)
	case tea.KeyRunes:
		if field.kind == fieldText {
			field.set(field.get(m.wizard.State()) + string(msg.Runes))
		}
	case tea.KeySpace:
		if field.kind == fieldText {
			field.set(field.get(m.wizard.State()) + " ")
		} else {
			m.cycle(field, 1)
		}
	case tea.KeyBackspace:
		if field.kind == fieldText {
			runes := []rune(field.get(m.wizard.State()))
			if len(runes) > 0 {
				field.set(string(runes[:len(runes)-1]))
			}
		}
	case tea.KeyEsc:
		if m.wizard.Prev() {
			m.cursor = 0
			m.notice = ""
		}
	case tea.KeyEnter:
		if m.wizard.Next() {
			m.cursor = 0
			m.notice = ""
			return m
		}
		m.notice = "Missing: " + strings.Join(m.wizard.Missing(step), ", ")
	}
	return m
}

func (m wizardModel) cycle(field formField, delta int) {
	if field.kind == fieldText || len(field.options) == 0 {
		return
	}
	current := field.get(m.wizard.State())
	next := 0
	if delta < 0 {
		next = len(field.options) - 1
	}
	for i, opt := range field.options {
		if opt.id == current {
			next = (i + delta + len(field.options)) % len(field.options)
			break
		}
	}
	field.set(field.options[next].id)
}

var yesNo = []choice{{id: "no", label: "no"}, {id: "yes", label: "yes"}}

func boolField(label string, get func(intake.State) bool, set func(bool)) formField {
	return formField{
		label:   label,
		kind:    fieldToggle,
		options: yesNo,
		get: func(s intake.State) string {
			if get(s) {
				return "yes"
			}
			return "no"
		},
		set: func(v string) { set(v == "yes") },
	}
}

func textField(label string, get func(intake.State) string, set func(string)) formField {
	return formField{label: label, kind: fieldText, get: get, set: set}
}

func (m wizardModel) fields(step intake.Step) []formField {
	w, cat := m.wizard, m.catalog
	switch step {
	case intake.StepCategory:
		var options []choice
		for _, c := range cat.Categories() {
			options = append(options, choice{id: string(c.ID), label: c.Label})
		}
		return []formField{{
			label:   "Category",
			kind:    fieldChoice,
			options: options,
			get:     func(s intake.State) string { return string(s.Category) },
			set:     func(v string) { w.SetCategory(domain.Category(v)) },
		}}
	case intake.StepProblem:
		var options []choice
		for _, pr := range cat.Problems(w.State().Category) {
			options = append(options, choice{id: pr.ID, label: pr.Label})
		}
		return []formField{
			{
				label:   "Problem",
				kind:    fieldChoice,
				options: options,
				get:     func(s intake.State) string { return s.ProblemDetail },
				set:     w.SetProblemDetail,
			},
			boolField("Display restarted", func(s intake.State) bool { return s.HasRestarted }, w.SetHasRestarted),
		}
	case intake.StepShipping:
		var options []choice
		for _, opt := range cat.ShippingOptions() {
			options = append(options, choice{id: opt.ID, label: fmt.Sprintf("%s (%s)", opt.Label, opt.Price)})
		}
		return []formField{{
			label:   "Shipping",
			kind:    fieldChoice,
			options: options,
			get:     func(s intake.State) string { return s.ShippingOption },
			set:     w.SetShippingOption,
		}}
	case intake.StepAccount:
		return []formField{
			textField("Account number", func(s intake.State) string { return s.AccountNumber }, w.SetAccountNumber),
			textField("Display number", func(s intake.State) string { return s.DisplayNumber }, w.SetDisplayNumber),
			textField("Display location", func(s intake.State) string { return s.DisplayLocation }, w.SetDisplayLocation),
			textField("Return address", func(s intake.State) string { return s.AlternateReturnAddress }, w.SetAlternateReturnAddress),
			textField("Email", func(s intake.State) string { return s.Email }, w.SetEmail),
		}
	case intake.StepContact:
		var salutations []choice
		for _, s := range cat.Salutations() {
			salutations = append(salutations, choice{id: string(s.ID), label: s.Label})
		}
		fields := []formField{
			boolField("Another device affected", func(s intake.State) bool { return s.AdditionalDeviceAffected }, w.SetAdditionalDeviceAffected),
			boolField("Different shipping address", func(s intake.State) bool { return s.DifferentShippingAddress }, w.SetDifferentShippingAddress),
		}
		if w.State().DifferentShippingAddress {
			fields = append(fields, textField("Shipping address", func(s intake.State) string { return s.ShippingAddress }, w.SetShippingAddress))
		}
		return append(fields,
			formField{
				label:   "Salutation",
				kind:    fieldChoice,
				options: salutations,
				get:     func(s intake.State) string { return string(s.Salutation) },
				set:     func(v string) { w.SetSalutation(domain.Salutation(v)) },
			},
			textField("Contact person", func(s intake.State) string { return s.ContactPerson }, w.SetContactPerson),
		)
	}
	return nil
}

func (m wizardModel) View() string {
	var b strings.Builder
	step := m.wizard.Current()
	state := m.wizard.State()

	switch step {
	case intake.StepConfirmation:
		b.WriteString(doneStyle.Render("Ticket created: "+state.TicketNumber) + "\n")
		fmt.Fprintf(&b, "Track it with: supportctl track %s\n", state.TicketNumber)
		b.WriteString(mutedStyle.Render("Press any key to exit.") + "\n")
		return b.String()
	case intake.StepSummary:
		printSummary(state, m.catalog, &b)
		b.WriteString("\n" + mutedStyle.Render("enter submit | esc back | ctrl+c abort") + "\n")
	default:
		b.WriteString(headingStyle.Render(fmt.Sprintf("Step %d: %s", int(step)+1, step)) + "\n\n")
		for i, field := range m.fields(step) {
			marker := "  "
			if i == m.cursor {
				marker = "> "
			}
			line := fmt.Sprintf("%s%-28s %s", marker, field.label+":", m.fieldValue(field, state))
			if i == m.cursor {
				line = currentStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n" + mutedStyle.Render("up/down field | left/right choose | enter next | esc back | ctrl+c abort") + "\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + errorStyle.Render(m.notice) + "\n")
	}
	return b.String()
}

func (m wizardModel) fieldValue(field formField, state intake.State) string {
	value := field.get(state)
	if field.kind == fieldText {
		return value + "_"
	}
	for _, opt := range field.options {
		if opt.id == value {
			return "< " + opt.label + " >"
		}
	}
	return mutedStyle.Render("< choose >")
}
