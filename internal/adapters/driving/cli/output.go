package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Title   lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Title:   lipgloss.Color("#5FAFD7"),
	Success: lipgloss.Color("#00D787"),
	Error:   lipgloss.Color("#FF005F"),
	Warning: lipgloss.Color("#FFAF00"),
	Hint:    lipgloss.Color("#6C6C6C"),
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint)
}

// statusStyle colors a task status.
func (t Theme) statusStyle(status domain.TaskStatus) lipgloss.Style {
	s := lipgloss.NewStyle()
	switch status {
	case domain.TaskStatusCompleted:
		return s.Foreground(t.Success)
	case domain.TaskStatusFailed:
		return s.Foreground(t.Error).Bold(true)
	case domain.TaskStatusProcessing:
		return s.Foreground(t.Warning)
	case domain.TaskStatusCancelled:
		return s.Foreground(t.Hint)
	default:
		return s
	}
}

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// terminalWidth is the stdout width, or 80 when stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// ellipsis shortens s to width runes.
func ellipsis(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// ago renders t relative to now, or "-" for the zero time.
func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func printTasks(cmd *cobra.Command, tasks []domain.Task) {
	if len(tasks) == 0 {
		cmd.Println("No tasks found.")
		return
	}
	header := fmt.Sprintf("%-36s  %-20s  %-10s  %-4s  %-5s  %s", "ID", "TYPE", "STATUS", "PRIO", "RETRY", "CREATED")
	cmd.Println(defaultTheme.titleStyle().Render(header))
	for i := range tasks {
		t := &tasks[i]
		status := defaultTheme.statusStyle(t.Status).Render(fmt.Sprintf("%-10s", t.Status))
		cmd.Printf("%-36s  %-20s  %s  %-4d  %d/%-3d  %s\n",
			t.ID, t.Type, status, t.Priority, t.RetryCount, t.MaxRetries, ago(t.CreatedAt))
		if t.ErrorMessage != "" {
			cmd.Println(defaultTheme.hintStyle().Render("    " + ellipsis(t.ErrorMessage, terminalWidth()-4)))
		}
	}
}
