package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/taskman/internal/models"
)

var (
	statusTodo       = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("4")) // Blue
	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green

	descStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingLeft(4)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true).
				PaddingLeft(4)

	createdStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			PaddingLeft(4)
)

// noDescription is shown for tasks without a description.
const noDescription = "No description"

// createdLayout renders creation times as "2 Jan 15:04".
const createdLayout = "2 Jan 15:04"

func formatStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusTodo:
		return statusTodo.Render("○ " + status.Label())
	case models.TaskStatusInProgress:
		return statusInProgress.Render("◐ " + status.Label())
	case models.TaskStatusDone:
		return statusDone.Render("● " + status.Label())
	default:
		return string(status)
	}
}

func formatStatusPlain(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusTodo:
		return "○"
	case models.TaskStatusInProgress:
		return "◐"
	case models.TaskStatusDone:
		return "●"
	default:
		return "?"
	}
}

// formatCreated renders the creation time, falling back to the raw value
// when it cannot be parsed.
func formatCreated(task models.Task) string {
	if t, ok := task.CreatedTime(); ok {
		return "Created: " + t.Local().Format(createdLayout)
	}
	if task.CreatedAt == "" {
		return ""
	}
	return "Created: " + task.CreatedAt
}

// renderTask renders one task as a title line followed by its description and
// creation time.
func renderTask(task models.Task, selected bool) string {
	var lines []string
	if selected {
		lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s  %s", formatStatusPlain(task.Status), task.Title)))
	} else {
		lines = append(lines, taskItemStyle.Render(fmt.Sprintf("%s  %s", formatStatus(task.Status), task.Title)))
	}

	if task.Description != "" {
		lines = append(lines, descStyle.Render(task.Description))
	} else {
		lines = append(lines, placeholderStyle.Render(noDescription))
	}
	if created := formatCreated(task); created != "" {
		lines = append(lines, createdStyle.Render(created))
	}
	return strings.Join(lines, "\n")
}

// renderTaskList renders the tasks, keeping the selection visible within
// height rows.
func renderTaskList(tasks []models.Task, selectedIdx int, focused bool, height int) string {
	if len(tasks) == 0 {
		return "\n  " + helpStyle.Render("No tasks yet. Type a title above and press Enter.") + "\n"
	}

	// Each task takes three rows plus a separator.
	perTask := 4
	visible := height / perTask
	if visible < 1 {
		visible = 1
	}

	start := 0
	end := len(tasks)
	if len(tasks) > visible {
		start = selectedIdx - visible/2
		if start < 0 {
			start = 0
		}
		end = start + visible
		if end > len(tasks) {
			end = len(tasks)
			start = max(0, end-visible)
		}
	}

	var blocks []string
	for i := start; i < end; i++ {
		blocks = append(blocks, renderTask(tasks[i], focused && i == selectedIdx))
	}
	return strings.Join(blocks, "\n\n")
}

// statusCounts returns how many tasks are in each status.
func statusCounts(tasks []models.Task) map[models.TaskStatus]int {
	counts := make(map[models.TaskStatus]int, len(models.TaskStatuses))
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
