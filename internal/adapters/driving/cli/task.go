package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/stash/internal/core/domain"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage indexing tasks",
	Long:  `Create, inspect, run and cancel the background tasks that index links and notes.`,
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <entity-type> <entity-id>",
	Short: "Queue a task for a link or note",
	Long: `Queue a task for a link or note. An identical task that is still pending
or processing is returned instead of creating a duplicate.

Task types:
  link_metadata         - fetch title, description and favicon
  link_embeddings       - embed the link's text
  note_embeddings       - chunk and embed a note
  refresh_link_content  - re-fetch the page text
  refresh_note_content  - recompute word count and embeddings`,
	Args: cobra.ExactArgs(2),
	RunE: runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Process pending tasks now",
	Long:  `Claims and processes up to --max pending tasks in this process, stopping early when none remain.`,
	RunE:  runTaskRun,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a pending or processing task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCancel,
}

func init() {
	taskCreateCmd.Flags().StringP("type", "t", "", "task type (required)")
	taskCreateCmd.Flags().IntP("priority", "p", domain.DefaultPriority, "priority from 1 (lowest) to 10")
	taskCreateCmd.Flags().Int("max-retries", domain.DefaultMaxRetries, "retries before the task fails")
	taskCreateCmd.Flags().String("payload", "", "task payload as JSON")
	_ = taskCreateCmd.MarkFlagRequired("type")

	taskListCmd.Flags().String("entity", "", "only tasks for this link or note id")
	taskListCmd.Flags().StringSlice("status", nil, "only tasks in these states (comma separated)")
	taskListCmd.Flags().IntP("limit", "n", 20, "maximum number of tasks")

	taskRunCmd.Flags().Int("max", 10, "maximum number of tasks to process")
	taskRunCmd.Flags().Bool("all-users", false, "process tasks of every user")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskShowCmd, taskRunCmd, taskCancelCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	if taskService == nil {
		return fmt.Errorf("task %w", errNotConfigured)
	}

	taskType, _ := cmd.Flags().GetString("type")
	priority, _ := cmd.Flags().GetInt("priority")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	payload, _ := cmd.Flags().GetString("payload")

	req := domain.TaskRequest{
		OwnerID:    userID,
		Type:       domain.TaskType(taskType),
		EntityType: domain.EntityType(args[0]),
		EntityID:   args[1],
		Priority:   priority,
		MaxRetries: &maxRetries,
	}
	if payload != "" {
		if !json.Valid([]byte(payload)) {
			return fmt.Errorf("%w: payload is not valid JSON", domain.ErrInvalidInput)
		}
		req.Payload = json.RawMessage(payload)
	}

	task, created, err := taskService.CreateTask(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, map[string]any{"task": task, "created": created})
	}
	if created {
		cmd.Printf("Queued %s task %s\n", task.Type, task.ID)
	} else {
		cmd.Printf("Task %s is already %s\n", task.ID, task.Status)
	}
	return nil
}

func runTaskList(cmd *cobra.Command, _ []string) error {
	if taskService == nil {
		return fmt.Errorf("task %w", errNotConfigured)
	}

	entity, _ := cmd.Flags().GetString("entity")
	statuses, _ := cmd.Flags().GetStringSlice("status")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := domain.TaskFilter{OwnerID: userID, EntityID: entity, Limit: limit}
	for _, s := range statuses {
		filter.Statuses = append(filter.Statuses, domain.TaskStatus(strings.TrimSpace(s)))
	}

	tasks, err := taskService.ListTasks(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if jsonOutput {
		if tasks == nil {
			tasks = []domain.Task{}
		}
		return printJSON(cmd, tasks)
	}
	printTasks(cmd, tasks)
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	if taskService == nil {
		return fmt.Errorf("task %w", errNotConfigured)
	}

	task, err := taskService.GetTask(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, task)
	}

	cmd.Println(defaultTheme.titleStyle().Render(task.ID))
	cmd.Printf("  Type:     %s\n", task.Type)
	cmd.Printf("  Entity:   %s %s\n", task.EntityType, task.EntityID)
	cmd.Printf("  Status:   %s\n", defaultTheme.statusStyle(task.Status).Render(string(task.Status)))
	cmd.Printf("  Priority: %d\n", task.Priority)
	cmd.Printf("  Retries:  %d/%d\n", task.RetryCount, task.MaxRetries)
	cmd.Printf("  Created:  %s\n", ago(task.CreatedAt))
	if task.CompletedAt != nil {
		cmd.Printf("  Finished: %s\n", ago(*task.CompletedAt))
	}
	if task.ErrorMessage != "" {
		cmd.Printf("  Error:    %s\n", task.ErrorMessage)
	}
	if len(task.Result) > 0 {
		cmd.Printf("  Result:   %s\n", string(task.Result))
	}
	return nil
}

func runTaskRun(cmd *cobra.Command, _ []string) error {
	if taskService == nil {
		return fmt.Errorf("task %w", errNotConfigured)
	}

	maxTasks, _ := cmd.Flags().GetInt("max")
	allUsers, _ := cmd.Flags().GetBool("all-users")
	owner := userID
	if allUsers {
		owner = ""
	}

	summary, err := taskService.RunTasks(cmd.Context(), owner, maxTasks)
	if err != nil {
		return fmt.Errorf("run tasks: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, summary)
	}
	cmd.Printf("Processed %d, failed %d\n", len(summary.Processed), len(summary.Failed))
	for _, id := range summary.Failed {
		cmd.Println(defaultTheme.errorStyle().Render("  failed: " + id))
	}
	return nil
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	if taskService == nil {
		return fmt.Errorf("task %w", errNotConfigured)
	}
	if err := taskService.CancelTask(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	cmd.Printf("Cancelled task %s\n", args[0])
	return nil
}
