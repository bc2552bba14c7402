package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spec-kit/display-support/internal/api/dto"
	"github.com/spec-kit/display-support/internal/board"
	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/tracking"
	apperrors "github.com/spec-kit/display-support/pkg/util/errorutil"
)

const timeLayout = "02.01.2006 15:04"

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	indentStyle  = lipgloss.NewStyle().PaddingLeft(2)
)

var stageMarks = map[domain.StageState]string{
	domain.StageCompleted: "[x]",
	domain.StageCurrent:   "[>]",
	domain.StagePending:   "[ ]",
}

func describeError(err error) string {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return fmt.Sprintf("%s (%s)", de.Message, de.Code)
	}
	return err.Error()
}

func renderProjection(w io.Writer, p *tracking.Projection, cat catalog.Provider) {
	fmt.Fprintln(w, headingStyle.Render("Ticket "+p.TicketNumber))
	fmt.Fprintf(w, "Status:   %s\n", currentStyle.Render(cat.StatusLabel(p.Status)))
	fmt.Fprintf(w, "Problem:  %s / %s\n", p.Category, p.ProblemDetail)
	fmt.Fprintf(w, "Display:  %s\n", p.DisplayNumber)
	fmt.Fprintf(w, "Shipping: %s\n", p.ShippingOption)
	fmt.Fprintf(w, "Created:  %s\n", p.CreatedAt.Local().Format(timeLayout))
	fmt.Fprintln(w)

	fmt.Fprintln(w, headingStyle.Render("Progress"))
	for _, stage := range p.Timeline {
		line := fmt.Sprintf("%s %s", stageMarks[stage.State], cat.StatusLabel(stage.Status))
		switch stage.State {
		case domain.StageCompleted:
			line = doneStyle.Render(line)
		case domain.StageCurrent:
			line = currentStyle.Render(line)
		default:
			line = mutedStyle.Render(line)
		}
		fmt.Fprintln(w, indentStyle.Render(line))
	}

	if len(p.StatusHistory) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("History"))
	for _, item := range p.StatusHistory {
		line := fmt.Sprintf("%s  %s", item.CreatedAt.Local().Format(timeLayout), cat.StatusLabel(item.ToStatus))
		if item.Comment != nil && *item.Comment != "" {
			line += ": " + *item.Comment
		}
		fmt.Fprintln(w, indentStyle.Render(line))
	}
}

func renderBoard(w io.Writer, b *board.Board, cat catalog.Provider) {
	columns, unknown := b.Columns()
	for _, status := range domain.StatusOrder {
		tickets := columns[status]
		fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("%s (%d)", cat.StatusLabel(status), len(tickets))))
		for _, t := range tickets {
			fmt.Fprintln(w, indentStyle.Render(summaryLine(t)))
		}
	}
	if len(unknown) > 0 {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("Unknown status (%d)", len(unknown))))
		for _, t := range unknown {
			fmt.Fprintln(w, indentStyle.Render(summaryLine(t)+" ["+string(t.Status)+"]"))
		}
	}
	fmt.Fprintln(w)
	renderStats(w, b.Stats())
}

func renderList(w io.Writer, tickets []dto.TicketSummary, cat catalog.Provider) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no tickets"))
		return
	}
	for _, t := range tickets {
		fmt.Fprintf(w, "%s  %s\n", summaryLine(t), mutedStyle.Render(cat.StatusLabel(t.Status)))
	}
}

func renderStats(w io.Writer, s board.Stats) {
	parts := []string{
		fmt.Sprintf("total %d", s.Total),
		fmt.Sprintf("open %d", s.Open),
		fmt.Sprintf("in progress %d", s.InProgress),
		fmt.Sprintf("completed %d", s.Completed),
	}
	if s.Unknown > 0 {
		parts = append(parts, fmt.Sprintf("unknown %d", s.Unknown))
	}
	fmt.Fprintln(w, mutedStyle.Render(strings.Join(parts, " | ")))
}

func summaryLine(t dto.TicketSummary) string {
	return fmt.Sprintf("%s  %s  %s  %s  (%s)", t.TicketNumber, t.DisplayNumber, t.ContactPerson, t.ProblemDetail, t.ID)
}
