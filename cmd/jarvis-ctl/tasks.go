package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"jarvis/internal/tasks"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Edit the task list",
	Long: `Edit the shared task list directly. Safe to use while the daemon and
dashboard are running.`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := taskStore()
		if err != nil {
			return err
		}
		list, err := store.Load()
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("no tasks")
			return nil
		}
		for i, t := range list {
			mark := " "
			if t.Done {
				mark = "x"
			}
			fmt.Printf("%2d [%s] %s\n", i, mark, t.Name)
		}
		return nil
	},
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := taskStore()
		if err != nil {
			return err
		}
		t, err := store.Add(strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("added %q (%s)\n", t.Name, t.ID)
		return nil
	},
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <name>",
	Short: "Mark a task done by name (case-insensitive)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := taskStore()
		if err != nil {
			return err
		}
		name := strings.Join(args, " ")
		found, err := store.MarkDone(name)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no task named %q", name)
		}
		fmt.Printf("marked %q done\n", name)
		return nil
	},
}

var tasksToggleUndo bool

var tasksToggleCmd = &cobra.Command{
	Use:   "toggle <index>",
	Short: "Set the done flag of the task at index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		store, err := taskStore()
		if err != nil {
			return err
		}
		found, err := store.Toggle(index, !tasksToggleUndo)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no task at index %d", index)
		}
		return nil
	},
}

var tasksResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove all tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := taskStore()
		if err != nil {
			return err
		}
		return store.Reset()
	},
}

func init() {
	tasksToggleCmd.Flags().BoolVar(&tasksToggleUndo, "undo", false, "mark the task not done")
	tasksCmd.AddCommand(tasksListCmd, tasksAddCmd, tasksDoneCmd, tasksToggleCmd, tasksResetCmd)
	rootCmd.AddCommand(tasksCmd)
}

func taskStore() (*tasks.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return tasks.NewStore(cfg.Files().Tasks), nil
}
