package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/printer"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

var (
	taskAddType      string
	taskAddPriority  string
	taskAddDesc      string
	taskAddDeps      []string
	taskListStatus   string
	taskListOutput   string
	taskInstanceFlag string
	taskBlockNote    string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, list and work tasks on the shared board",
}

var taskAddCmd = &cobra.Command{
	Use:   "add TITLE",
	Short: "Add a pending task to the board",
	Long: `Add a pending task to the board.

Examples:
  # A high priority integration task
  brewctl task add "wire glycol temp to UNS" --type integration --priority high

  # A task that depends on two others
  brewctl task add "deploy flows" --type deploy --depends-on a1b2...,c3d4...`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks on the board",
	Long: `List tasks on the board.

Output Formats:
  default - Human-readable table
  json    - JSON array for scripting

Examples:
  # Show the whole board
  brewctl task list

  # Only pending work
  brewctl task list --status pending

  # Feed task IDs to a script
  brewctl task list --output=json | jq -r '.[].id'`,
	RunE: runTaskList,
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim TASK_ID",
	Short: "Atomically claim a task for this instance",
	Long: `Atomically claim a task for this instance.

Exactly one instance can hold a task; if another instance got there
first the command fails and names the holder.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskClaim,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done TASK_ID",
	Short: "Mark a task complete",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskBlockCmd = &cobra.Command{
	Use:   "block TASK_ID",
	Short: "Mark a task blocked with a reason",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskBlock,
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskAddType, "type", "t", "build", "Task type (build, research, monitor, integration, deploy)")
	taskAddCmd.Flags().StringVarP(&taskAddPriority, "priority", "p", "medium", "Priority (high, medium, low)")
	taskAddCmd.Flags().StringVarP(&taskAddDesc, "desc", "d", "", "Free-form description")
	taskAddCmd.Flags().StringSliceVar(&taskAddDeps, "depends-on", nil, "Task IDs that must complete first")

	taskListCmd.Flags().StringVarP(&taskListStatus, "status", "s", "", "Filter by status")
	taskListCmd.Flags().StringVarP(&taskListOutput, "output", "o", "default", "Output format (default or json)")

	taskClaimCmd.Flags().StringVar(&taskInstanceFlag, "as", "", "Instance identity (defaults to $IOTSTACK_INSTANCE)")
	taskBlockCmd.Flags().StringVarP(&taskBlockNote, "note", "m", "", "Why the task is blocked (required)")
	taskBlockCmd.MarkFlagRequired("note")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskClaimCmd, taskDoneCmd, taskBlockCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadStack()
	if err != nil {
		return err
	}

	client, err := boardClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	task := taskboard.NewTask(args[0], taskboard.TaskType(taskAddType), taskboard.Priority(taskAddPriority))
	task.Description = taskAddDesc
	task.Dependencies = append(task.Dependencies, taskAddDeps...)

	if err := client.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	printer.Success("Task created: %s\n", task.ID)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadStack()
	if err != nil {
		return err
	}

	client, err := boardClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	tasks, err := client.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if taskListStatus != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.Status) == taskListStatus {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	// Newest first, matching how the board is usually read.
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAtMs > tasks[j].CreatedAtMs
	})

	if taskListOutput == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	if len(tasks) == 0 {
		printer.Printf("No tasks found on the '%s' board\n", cfg.Project)
		return nil
	}

	printer.Printf("Tasks on the '%s' board:\n\n", cfg.Project)
	printer.Printf("%-10s %-11s %-8s %-12s %-14s %s\n",
		"ID", "STATUS", "PRIORITY", "TYPE", "INSTANCE", "TITLE")
	printer.Printf("%-10s %-11s %-8s %-12s %-14s %s\n",
		"--", "------", "--------", "----", "--------", "-----")
	for _, t := range tasks {
		instance := t.ClaimedBy
		if instance == "" {
			instance = "-"
		}
		printer.Printf("%-10s %-11s %-8s %-12s %-14s %s\n",
			shortTaskID(t.ID), t.Status, t.Priority, t.Type, instance, t.Title)
	}
	printer.Printf("\n%d tasks found\n", len(tasks))
	return nil
}

func runTaskClaim(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadStack()
	if err != nil {
		return err
	}

	name, err := instanceName(taskInstanceFlag, cfg)
	if err != nil {
		return err
	}

	client, err := boardClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	task, err := client.ClaimTask(ctx, args[0], name)
	if err != nil {
		if taskboard.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("task '%s' not found", args[0]),
				"The task does not exist on the board.",
				[]string{"List tasks:\n  brewctl task list"},
			)
		}
		if errors.Is(err, taskboard.ErrTaskClaimed) {
			return printer.Error(
				"task already claimed",
				fmt.Sprintf("Error: %v", err),
				[]string{"Pick other work:\n  brewctl task list --status pending"},
			)
		}
		return fmt.Errorf("failed to claim task: %w", err)
	}

	printer.Success("Claimed %q for %s\n", task.Title, name)
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	return setStatus(args[0], taskboard.StatusComplete, "")
}

func runTaskBlock(cmd *cobra.Command, args []string) error {
	return setStatus(args[0], taskboard.StatusBlocked, taskBlockNote)
}

// setStatus is the shared implementation for done and block.
func setStatus(taskID string, next taskboard.Status, note string) error {
	ctx := context.Background()

	cfg, err := loadStack()
	if err != nil {
		return err
	}

	client, err := boardClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	task, err := client.SetTaskStatus(ctx, taskID, next, note)
	if err != nil {
		if taskboard.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("task '%s' not found", taskID),
				"The task does not exist on the board.",
				[]string{"List tasks:\n  brewctl task list"},
			)
		}
		if errors.Is(err, taskboard.ErrBadTransition) {
			return printer.Error(
				"illegal status change",
				fmt.Sprintf("Error: %v", err),
				[]string{"Check the task's current status:\n  brewctl task list"},
			)
		}
		return fmt.Errorf("failed to update task: %w", err)
	}

	printer.Success("%q is now %s\n", task.Title, task.Status)
	return nil
}

// shortTaskID truncates a task UUID for compact table display.
func shortTaskID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
