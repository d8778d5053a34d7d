// Package console formats user-facing terminal output: status messages,
// section rules and tables.
package console

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

var colorEnabled = term.IsTerminal(int(os.Stdout.Fd()))

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// SetColor enables or disables styling. Styling starts enabled only when
// stdout is a terminal.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

// FormatInfoMessage formats an informational message.
func FormatInfoMessage(message string) string {
	return render(infoStyle, "ℹ "+message)
}

// FormatWarningMessage formats a warning message.
func FormatWarningMessage(message string) string {
	return render(warningStyle, "⚠ "+message)
}

// FormatSuccessMessage formats a success message.
func FormatSuccessMessage(message string) string {
	return render(successStyle, "✔ "+message)
}

// FormatErrorMessage formats an error message.
func FormatErrorMessage(message string) string {
	return render(errorStyle, "✘ "+message)
}

// FormatCommandMessage formats a command line about to be executed.
func FormatCommandMessage(command string) string {
	return render(commandStyle, "$ "+command)
}

// Rule renders a horizontal separator with a centered title.
func Rule(title string, width int) string {
	if width <= 0 {
		width = terminalWidth()
	}
	label := " " + title + " "
	side := (width - len([]rune(label))) / 2
	if side < 3 {
		side = 3
	}
	line := strings.Repeat("─", side) + label + strings.Repeat("─", side)
	return render(ruleStyle, line)
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// TableConfig describes a table to render.
type TableConfig struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTable renders a bordered table. An optional title is printed above it.
func RenderTable(cfg TableConfig) string {
	t := table.New().
		Headers(cfg.Headers...).
		Rows(cfg.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if !colorEnabled {
		t = t.Border(lipgloss.NormalBorder())
	}

	var b strings.Builder
	if cfg.Title != "" {
		fmt.Fprintln(&b, render(headerStyle, cfg.Title))
	}
	b.WriteString(t.Render())
	return b.String()
}
