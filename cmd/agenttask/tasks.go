package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Little-Star888/agenttask/internal/model"
)

// taskFile is the YAML document read by import and written by export.
type taskFile struct {
	ID     string           `yaml:"id,omitempty"`
	Name   string           `yaml:"name"`
	Config model.TaskConfig `yaml:"config"`
}

func newTasksCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage stored task definitions",
	}
	cmd.AddCommand(
		newTasksListCmd(flags),
		newTasksGetCmd(flags),
		newTasksDeleteCmd(flags),
		newTasksImportCmd(flags),
		newTasksExportCmd(flags),
	)
	return cmd
}

func newTasksListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored tasks, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			tasks, err := a.store.ListTasks(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tACTIVE\tSTEPS\tUPDATED")
			for _, t := range tasks {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\n", t.ID, t.Name, t.Active, t.StepCount, t.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newTasksGetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a task as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.store.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(task)
		},
	}
}

func newTasksDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newTasksImportCmd(flags *globalFlags) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or overwrite a task from a YAML file",
		Long: `Import reads a YAML task document:

  name: greet
  config:
    description: says hello
    steps:
      - type: set
        config: {value: "hello ${name}"}
        responseVariable: greeting

An id in the file or the --id flag overwrites that task when it exists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readTaskFile(args[0])
			if err != nil {
				return err
			}
			if id != "" {
				doc.ID = id
			}

			a, err := newApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.saveTask(cmd.Context(), doc.ID, doc.Name, doc.Config)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "task id to overwrite")
	return cmd
}

func newTasksExportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id>",
		Short: "Write a task as YAML, in the form import accepts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.store.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(taskFile{ID: task.ID, Name: task.Name, Config: task.Config}); err != nil {
				return fmt.Errorf("encode task: %w", err)
			}
			return enc.Close()
		},
	}
}

func readTaskFile(path string) (taskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return taskFile{}, fmt.Errorf("read task file: %w", err)
	}
	var doc taskFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return taskFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}
