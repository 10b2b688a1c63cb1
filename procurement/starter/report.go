package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-temporal-procurement/procurement/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// renderResult formats a finished run for the terminal
func renderResult(result types.ProcurementResult) string {
	rec := result.Record
	if rec.Outcome != types.OutcomeConfirmed {
		body := lipgloss.JoinVertical(lipgloss.Left,
			warnStyle.Render(string(rec.Outcome)),
			mutedStyle.Render(rec.Reason),
			renderAttempts(rec.Attempts),
		)
		return boxStyle.Render(body)
	}

	lines := []string{
		titleStyle.Render("Order " + rec.OrderNumber),
		fmt.Sprintf("Vendor: %s (%s)", rec.SelectedVendorName, rec.SelectedVendorID),
		"",
	}
	for _, line := range rec.Lines {
		lines = append(lines, fmt.Sprintf("%-28s %5d x %9.2f = %10.2f", line.ItemName, line.Quantity, line.UnitPrice, line.LineTotal))
	}
	lines = append(lines, "", fmt.Sprintf("Total: %.2f for %d units", rec.TotalCost, rec.TotalItems))
	if rec.RequiresApproval {
		lines = append(lines, warnStyle.Render("Manual approval required: total exceeds auto-approve threshold"))
	}
	if rec.Reason != "" {
		lines = append(lines, mutedStyle.Render(rec.Reason))
	}
	if len(rec.Attempts) > 1 {
		lines = append(lines, renderAttempts(rec.Attempts))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderAttempts(attempts []types.ConfirmationAttempt) string {
	if len(attempts) == 0 {
		return ""
	}
	rows := []string{mutedStyle.Render("Confirmation attempts:")}
	for _, a := range attempts {
		row := fmt.Sprintf("  %s #%d %s", a.VendorID, a.Attempt, a.State)
		if a.Reason != "" {
			row += " (" + a.Reason + ")"
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

// renderHistory formats stored records, newest first
func renderHistory(records []types.ProcurementRecord) string {
	header := titleStyle.Render(fmt.Sprintf("%-16s  %-20s  %-10s  %10s  %s", "WHEN", "OUTCOME", "VENDOR", "TOTAL", "ORDER"))
	rows := []string{header}
	for _, rec := range records {
		vendor := rec.SelectedVendorID
		if vendor == "" {
			vendor = "-"
		}
		row := fmt.Sprintf("%-16s  %-20s  %-10s  %10.2f  %s",
			rec.CreatedAt.Format("2006-01-02 15:04"), rec.Outcome, vendor, rec.TotalCost, rec.OrderNumber)
		if rec.Outcome != types.OutcomeConfirmed {
			row = warnStyle.Render(row)
		}
		rows = append(rows, row)
	}
	return boxStyle.Render(strings.Join(rows, "\n"))
}
