// Package tui provides the interactive terminal UI for taskman.
package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/taskman/internal/models"
	"github.com/fentz26/taskman/internal/taskstore"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	focusedInputBoxStyle = inputBoxStyle.Copy().
				BorderForeground(primaryColor)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

type focusArea int

const (
	focusTitle focusArea = iota
	focusDescription
	focusList
)

// App is the main TUI application model. It renders the store's collection
// and turns key presses into store operations.
type App struct {
	store    *taskstore.Store
	log      *slog.Logger
	endpoint string

	titleInput textinput.Model
	descInput  textinput.Model
	spinner    spinner.Model

	tasks       []models.Task
	selectedIdx int
	focus       focusArea
	width       int
	height      int
	message     string
	isError     bool
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger for UI events.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithEndpoint sets the API address shown in the header.
func WithEndpoint(endpoint string) Option {
	return func(a *App) {
		a.endpoint = endpoint
	}
}

// New creates a new TUI application over store.
func New(store *taskstore.Store, opts ...Option) *App {
	title := textinput.New()
	title.Placeholder = "Task title"
	title.CharLimit = 200
	title.Width = 60
	title.Focus()

	desc := textinput.New()
	desc.Placeholder = "Description (optional)"
	desc.CharLimit = 1000
	desc.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	a := &App{
		store:      store,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		titleInput: title,
		descInput:  desc,
		spinner:    sp,
		focus:      focusTitle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the TUI application and closes the store when it exits.
func (a *App) Run() error {
	defer a.store.Close()
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.spinner.Tick,
		a.load(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.titleInput.Width = msg.Width - 6
		a.descInput.Width = msg.Width - 6
		return a, nil

	case spinner.TickMsg:
		if !a.store.Loading() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case loadedMsg:
		a.sync()
		if msg.err != nil {
			a.setError("load tasks", msg.err)
		} else if msg.refresh {
			a.setMessage(fmt.Sprintf("✓ Refreshed %d tasks", len(a.tasks)))
		}
		return a, nil

	case createdMsg:
		a.sync()
		if msg.err != nil {
			a.setError("create task", msg.err)
			return a, nil
		}
		a.titleInput.Reset()
		a.descInput.Reset()
		a.setMessage(fmt.Sprintf("✓ Created task %d", msg.task.ID))
		return a, nil

	case opResultMsg:
		a.sync()
		if msg.err != nil {
			a.setError(msg.op, msg.err)
			return a, nil
		}
		a.setMessage(msg.message)
		return a, nil
	}

	return a, a.updateInputs(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "tab":
		return a, a.setFocus((a.focus + 1) % 3)

	case "shift+tab":
		return a, a.setFocus((a.focus + 2) % 3)

	case "esc":
		return a, a.setFocus(focusList)
	}

	if a.focus != focusList {
		if msg.Type == tea.KeyEnter {
			return a, a.submit()
		}
		return a, a.updateInputs(msg)
	}

	switch msg.String() {
	case "q":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.tasks)-1 {
			a.selectedIdx++
		}

	case "r":
		return a, a.refresh()

	case "s":
		if task, ok := a.selected(); ok {
			return a, a.setStatus(task.ID, task.Status.Next())
		}

	case "1", "2", "3":
		if task, ok := a.selected(); ok {
			status := models.TaskStatuses[int(msg.Runes[0]-'1')]
			return a, a.setStatus(task.ID, status)
		}

	case "x", "delete":
		if task, ok := a.selected(); ok {
			return a, a.remove(task.ID)
		}

	case "n", "a":
		return a, a.setFocus(focusTitle)
	}
	return a, nil
}

func (a *App) updateInputs(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.titleInput, cmd = a.titleInput.Update(msg)
	cmds = append(cmds, cmd)
	a.descInput, cmd = a.descInput.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (a *App) setFocus(f focusArea) tea.Cmd {
	a.focus = f
	a.titleInput.Blur()
	a.descInput.Blur()
	switch f {
	case focusTitle:
		return a.titleInput.Focus()
	case focusDescription:
		return a.descInput.Focus()
	}
	return nil
}

func (a *App) selected() (models.Task, bool) {
	if a.selectedIdx < 0 || a.selectedIdx >= len(a.tasks) {
		return models.Task{}, false
	}
	return a.tasks[a.selectedIdx], true
}

// sync re-reads the store so the view reflects merged state.
func (a *App) sync() {
	a.tasks = a.store.Tasks()
	if a.selectedIdx >= len(a.tasks) {
		a.selectedIdx = max(0, len(a.tasks)-1)
	}
}

func (a *App) setMessage(m string) {
	a.message = m
	a.isError = false
}

func (a *App) setError(op string, err error) {
	a.message = "Error: " + err.Error()
	a.isError = true
	a.log.Debug("operation failed", "op", op, "err", err)
}

// submit creates a task from the form. Blank titles are rejected here without
// a remote call; the inputs are cleared only when creation succeeds.
func (a *App) submit() tea.Cmd {
	title := a.titleInput.Value()
	if strings.TrimSpace(title) == "" {
		a.message = "Title is required"
		a.isError = true
		return a.setFocus(focusTitle)
	}
	return a.create(title, a.descInput.Value())
}

// --- Commands ---

type loadedMsg struct {
	refresh bool
	err     error
}

type createdMsg struct {
	task models.Task
	err  error
}

type opResultMsg struct {
	op      string
	message string
	err     error
}

func (a *App) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: a.store.Load(context.Background())}
	}
}

func (a *App) refresh() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{refresh: true, err: a.store.Load(context.Background())}
	}
}

func (a *App) create(title, description string) tea.Cmd {
	return func() tea.Msg {
		task, err := a.store.Create(context.Background(), title, description)
		return createdMsg{task: task, err: err}
	}
}

func (a *App) setStatus(id int64, status models.TaskStatus) tea.Cmd {
	return func() tea.Msg {
		task, err := a.store.SetStatus(context.Background(), id, status)
		if err != nil {
			return opResultMsg{op: "update status", err: err}
		}
		return opResultMsg{message: fmt.Sprintf("✓ %s is now %s", task.Title, task.Status.Label())}
	}
}

func (a *App) remove(id int64) tea.Cmd {
	return func() tea.Msg {
		if err := a.store.Remove(context.Background(), id); err != nil {
			return opResultMsg{op: "delete task", err: err}
		}
		return opResultMsg{message: fmt.Sprintf("✓ Deleted task %d", id)}
	}
}

// --- View ---

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	header := titleStyle.Render("taskman")
	if a.endpoint != "" {
		header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(a.endpoint)
	}
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 40)) + "\n")

	// Form
	titleBox, descBox := inputBoxStyle, inputBoxStyle
	switch a.focus {
	case focusTitle:
		titleBox = focusedInputBoxStyle
	case focusDescription:
		descBox = focusedInputBoxStyle
	}
	b.WriteString(titleBox.Render(a.titleInput.View()) + "\n")
	b.WriteString(descBox.Render(a.descInput.View()) + "\n\n")

	// Content
	contentHeight := a.height - 14
	if contentHeight < 4 {
		contentHeight = 4
	}
	if a.store.Loading() {
		b.WriteString(fmt.Sprintf("\n  %s Loading tasks...\n", a.spinner.View()))
	} else {
		b.WriteString(renderTaskList(a.tasks, a.selectedIdx, a.focus == focusList, contentHeight) + "\n")
	}

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if a.isError {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	}
	b.WriteString("\n")

	// Status bar
	counts := statusCounts(a.tasks)
	var status string
	if a.focus == focusList {
		status = fmt.Sprintf(" Tasks: %d (%d todo, %d in progress, %d done) | ↑↓:nav | s:cycle | 1-3:set | x:delete | r:refresh | Tab:form | q:quit",
			len(a.tasks), counts[models.TaskStatusTodo], counts[models.TaskStatusInProgress], counts[models.TaskStatusDone])
	} else {
		status = fmt.Sprintf(" Tasks: %d | Enter:create | Tab:next field | Esc:list | Ctrl+C:quit", len(a.tasks))
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 40)).Render(status))

	return b.String()
}
