package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/taskify/pkg/engine"
)

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	mutedGray  = lipgloss.Color("#6B7280")
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Bold(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	remediationStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(salmonPink).
				Padding(0, 1)
)

// render formats a result for the terminal
func render(res engine.Result) string {
	var b strings.Builder

	if res.Success {
		b.WriteString(successStyle.Render("✓ " + res.Message))
	} else {
		b.WriteString(failureStyle.Render("✗ " + res.Message))
	}
	b.WriteString("\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label+":"), value)
	}

	field("status", res.Status)
	if res.SessionOpen != nil {
		field("browser open", yesNo(*res.SessionOpen))
	}
	if res.Authenticated != nil {
		field("logged in", yesNo(*res.Authenticated))
	}
	field("location", res.CurrentLocation)
	if res.ReusedSession != nil {
		field("reused session", yesNo(*res.ReusedSession))
	}
	if res.ProcessedCount != nil {
		field("processed", fmt.Sprintf("%d", *res.ProcessedCount))
	}
	field("run", res.RunID)
	if res.Error != res.Message {
		field("error", res.Error)
	}

	if res.Remediation != "" {
		b.WriteString(remediationStyle.Render(res.Remediation))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
