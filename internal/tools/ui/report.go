// Package ui renders operator-facing output for the CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sandeepkv93/device-session-guard/internal/service"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	labelStyle = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("8"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func RenderSweepReport(r service.SweepReport) string {
	status := okStyle.Render("ok")
	if r.Failed > 0 {
		status = failStyle.Render("partial")
	}
	rows := []string{
		titleStyle.Render(fmt.Sprintf("session sweep for user %d", r.UserID)),
		row("status", status),
		row("checked", fmt.Sprint(r.Checked)),
		row("expired", fmt.Sprint(r.Expired)),
		row("failed", fmt.Sprint(r.Failed)),
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// RenderResult renders the outcome of a CLI step with its detail lines.
func RenderResult(title string, details []string, err error) string {
	var b strings.Builder
	if err != nil {
		b.WriteString(failStyle.Render("✗ " + title))
	} else {
		b.WriteString(okStyle.Render("✓ " + title))
	}
	for _, d := range details {
		b.WriteString("\n  " + d)
	}
	if err != nil {
		b.WriteString("\n  " + failStyle.Render(err.Error()))
	}
	return b.String()
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}
