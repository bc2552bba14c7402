package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/intake"
)

var errAborted = errors.New("submission aborted")

type choice struct {
	id    string
	label string
}

// prompter reads one answer per line. Every read fails once input is exhausted
// so a closed stdin can never spin the wizard loop.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func (p *prompter) confirm(question string) (bool, error) {
	for {
		answer, err := p.ask(question + " [y/n]")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes", "j", "ja":
			return true, nil
		case "n", "no", "nein":
			return false, nil
		}
	}
}

// choose accepts either the option's number or its id.
func (p *prompter) choose(question string, options []choice) (string, error) {
	fmt.Fprintln(p.out, headingStyle.Render(question))
	for i, opt := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt.label)
	}
	for {
		answer, err := p.ask("Choice")
		if err != nil {
			return "", err
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
			return options[n-1].id, nil
		}
		for _, opt := range options {
			if strings.EqualFold(answer, opt.id) {
				return opt.id, nil
			}
		}
		fmt.Fprintln(p.out, errorStyle.Render("Please pick one of the listed options."))
	}
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Report a display problem through the guided wizard",
		Long: `Submit walks through category, problem, shipping, account and contact
details, shows a summary and creates the ticket once confirmed. A failed
submission can be retried without creating a duplicate ticket.

On a terminal the wizard runs as a full-screen form. Piped input, or --plain,
answers one question per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := opts.catalog()
			if err != nil {
				return err
			}
			wizard := intake.NewWizard(cat, opts.client(), opts.logger)
			if in, ok := cmd.InOrStdin().(*os.File); ok && !plain && term.IsTerminal(int(in.Fd())) {
				return runWizardTUI(cmd.Context(), wizard, cat, in, cmd.OutOrStdout(), opts.timeout)
			}
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			return runWizard(cmd.Context(), wizard, cat, p, opts)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "use line prompts even on a terminal")
	return cmd
}

func runWizardTUI(ctx context.Context, w *intake.Wizard, cat catalog.Provider, in io.Reader, out io.Writer, timeout time.Duration) error {
	program := tea.NewProgram(newWizardModel(ctx, w, cat, timeout),
		tea.WithInput(in), tea.WithOutput(out), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("run wizard: %w", err)
	}
	if m, ok := final.(wizardModel); ok && m.aborted {
		return errAborted
	}
	return nil
}

func runWizard(ctx context.Context, w *intake.Wizard, cat catalog.Provider, p *prompter, opts *rootOptions) error {
	for {
		step := w.Current()
		var err error
		switch step {
		case intake.StepCategory:
			err = askCategory(w, cat, p)
		case intake.StepProblem:
			err = askProblem(w, cat, p)
		case intake.StepShipping:
			err = askShipping(w, cat, p)
		case intake.StepAccount:
			err = askAccount(w, p)
		case intake.StepContact:
			err = askContact(w, cat, p)
		case intake.StepSummary:
			err = reviewAndSubmit(ctx, w, cat, p, opts)
		case intake.StepConfirmation:
			fmt.Fprintln(p.out)
			fmt.Fprintln(p.out, doneStyle.Render("Ticket created: "+w.State().TicketNumber))
			fmt.Fprintf(p.out, "Track it with: supportctl track %s\n", w.State().TicketNumber)
			return nil
		}
		if err != nil {
			return err
		}
		if step < intake.StepSummary && !w.Next() {
			fmt.Fprintln(p.out, errorStyle.Render("Missing: "+strings.Join(w.Missing(step), ", ")))
		}
	}
}

func askCategory(w *intake.Wizard, cat catalog.Provider, p *prompter) error {
	var options []choice
	for _, c := range cat.Categories() {
		options = append(options, choice{id: string(c.ID), label: c.Label})
	}
	id, err := p.choose("What kind of problem do you have?", options)
	if err != nil {
		return err
	}
	w.SetCategory(domain.Category(id))
	return nil
}

func askProblem(w *intake.Wizard, cat catalog.Provider, p *prompter) error {
	var options []choice
	for _, pr := range cat.Problems(w.State().Category) {
		options = append(options, choice{id: pr.ID, label: pr.Label})
	}
	id, err := p.choose("Which problem best describes it?", options)
	if err != nil {
		return err
	}
	w.SetProblemDetail(id)

	restarted, err := p.confirm("Have you restarted the display?")
	if err != nil {
		return err
	}
	if !restarted {
		fmt.Fprintln(p.out, "Please restart the display first; many problems disappear after a restart.")
	}
	w.SetHasRestarted(restarted)
	return nil
}

func askShipping(w *intake.Wizard, cat catalog.Provider, p *prompter) error {
	var options []choice
	for _, opt := range cat.ShippingOptions() {
		label := fmt.Sprintf("%s (%s)", opt.Label, opt.Price)
		if opt.Recommended {
			label += " *"
		}
		options = append(options, choice{id: opt.ID, label: label})
	}
	id, err := p.choose("How should the device be shipped?", options)
	if err != nil {
		return err
	}
	w.SetShippingOption(id)
	return nil
}

func askAccount(w *intake.Wizard, p *prompter) error {
	fields := []struct {
		question string
		set      func(string)
	}{
		{"Account number", w.SetAccountNumber},
		{"Display number", w.SetDisplayNumber},
		{"Display location", w.SetDisplayLocation},
		{"Alternate return address (optional)", w.SetAlternateReturnAddress},
		{"Email", w.SetEmail},
	}
	for _, f := range fields {
		answer, err := p.ask(f.question)
		if err != nil {
			return err
		}
		f.set(answer)
	}
	return nil
}

func askContact(w *intake.Wizard, cat catalog.Provider, p *prompter) error {
	additional, err := p.confirm("Is another device affected?")
	if err != nil {
		return err
	}
	w.SetAdditionalDeviceAffected(additional)

	different, err := p.confirm("Ship to a different address?")
	if err != nil {
		return err
	}
	w.SetDifferentShippingAddress(different)
	if different {
		address, err := p.ask("Shipping address")
		if err != nil {
			return err
		}
		w.SetShippingAddress(address)
	}

	var options []choice
	for _, s := range cat.Salutations() {
		options = append(options, choice{id: string(s.ID), label: s.Label})
	}
	salutation, err := p.choose("Salutation", options)
	if err != nil {
		return err
	}
	w.SetSalutation(domain.Salutation(salutation))

	person, err := p.ask("Contact person")
	if err != nil {
		return err
	}
	w.SetContactPerson(person)
	return nil
}

func reviewAndSubmit(ctx context.Context, w *intake.Wizard, cat catalog.Provider, p *prompter, opts *rootOptions) error {
	printSummary(w.State(), cat, p.out)

	answer, err := p.ask("Submit this ticket? [y/n/edit]")
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "n", "no", "nein":
		return errAborted
	case "e", "edit":
		return editStep(w, p)
	case "y", "yes", "j", "ja":
	default:
		return nil
	}

	w.SetConfirmed(true)
	for {
		submitCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		err := w.Submit(submitCtx)
		cancel()
		if err == nil {
			return nil
		}
		fmt.Fprintln(p.out, errorStyle.Render("Submission failed: "+describeError(err)))
		retry, cerr := p.confirm("Try again?")
		if cerr != nil {
			return cerr
		}
		if !retry {
			return err
		}
	}
}

func editStep(w *intake.Wizard, p *prompter) error {
	var options []choice
	for _, s := range intake.Steps {
		if s >= intake.StepSummary {
			break
		}
		options = append(options, choice{id: s.String(), label: s.String()})
	}
	name, err := p.choose("Which section do you want to change?", options)
	if err != nil {
		return err
	}
	for _, s := range intake.Steps {
		if s.String() == name {
			w.GoTo(s)
			break
		}
	}
	return nil
}

func printSummary(s intake.State, cat catalog.Provider, out io.Writer) {
	problem := s.ProblemDetail
	for _, pr := range cat.Problems(s.Category) {
		if pr.ID == s.ProblemDetail {
			problem = pr.Label
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, headingStyle.Render("Summary"))
	rows := [][2]string{
		{"Category", string(s.Category)},
		{"Problem", problem},
		{"Shipping", s.ShippingOption},
		{"Account", s.AccountNumber},
		{"Display", s.DisplayNumber + " @ " + s.DisplayLocation},
		{"Email", s.Email},
		{"Contact", strings.TrimSpace(string(s.Salutation) + " " + s.ContactPerson)},
	}
	if s.AlternateReturnAddress != "" {
		rows = append(rows, [2]string{"Return address", s.AlternateReturnAddress})
	}
	if s.DifferentShippingAddress {
		rows = append(rows, [2]string{"Ship to", s.ShippingAddress})
	}
	if s.AdditionalDeviceAffected {
		rows = append(rows, [2]string{"Note", "another device is affected"})
	}
	for _, row := range rows {
		fmt.Fprintf(out, "  %-15s %s\n", row[0]+":", row[1])
	}
}
