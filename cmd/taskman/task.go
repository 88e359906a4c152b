package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/fentz26/taskman/internal/api"
	"github.com/fentz26/taskman/internal/models"
	"github.com/fentz26/taskman/internal/taskstore"
	"github.com/spf13/cobra"
)

var _ taskstore.Remote = (*api.Client)(nil)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id] [todo|in_progress|done]",
	Short: "Change a task's status",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskStatus,
}

var taskRemoveCmd = &cobra.Command{
	Use:     "rm [task-id]",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskRemove,
}

var (
	taskTitle  string
	taskDesc   string
	taskStatus string
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskStatusCmd, taskRemoveCmd)

	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.MarkFlagRequired("title")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Only show tasks with this status (todo, in_progress, done)")
}

// loadStore builds a store against the configured API and loads it.
func loadStore(cmd *cobra.Command) (*taskstore.Store, error) {
	client := api.NewClient(cfg.APIURL, cfg.Timeout)
	store := taskstore.New(client, taskstore.WithLogger(logger))
	if err := store.Load(cmd.Context()); err != nil {
		return nil, err
	}
	return store, nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	store, err := loadStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	task, err := store.Create(cmd.Context(), taskTitle, taskDesc)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created task: %d\n", task.ID)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	filter := models.TaskStatus(taskStatus)
	if filter != "" && !filter.Valid() {
		return fmt.Errorf("%w: %q", taskstore.ErrInvalidStatus, taskStatus)
	}

	store, err := loadStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var tasks []models.Task
	for _, t := range store.Tasks() {
		if filter == "" || t.Status == filter {
			tasks = append(tasks, t)
		}
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tCREATED")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, truncate(t.Title, 40), t.Status, formatCreated(t))
	}
	return w.Flush()
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.APIURL, cfg.Timeout)
	task, err := client.GetTask(cmd.Context(), id)
	if err != nil {
		return err
	}

	description := task.Description
	if description == "" {
		description = "No description"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %d\n", task.ID)
	fmt.Fprintf(out, "Title:       %s\n", task.Title)
	fmt.Fprintf(out, "Description: %s\n", description)
	fmt.Fprintf(out, "Status:      %s\n", task.Status.Label())
	fmt.Fprintf(out, "Created:     %s\n", formatCreated(task))
	return nil
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	status := models.TaskStatus(args[1])

	store, err := loadStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	task, err := store.SetStatus(cmd.Context(), id, status)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Task %d is now %s\n", task.ID, task.Status.Label())
	return nil
}

func runTaskRemove(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	store, err := loadStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Remove(cmd.Context(), id); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d (%d remaining)\n", id, store.Len())
	return nil
}

// --- Helpers ---

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func formatCreated(t models.Task) string {
	if ts, ok := t.CreatedTime(); ok {
		return ts.Local().Format("2 Jan 15:04")
	}
	return t.CreatedAt
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
