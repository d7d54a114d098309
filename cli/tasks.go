package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/xerrors"

	"github.com/coder/serpent"

	"github.com/openclaw/dashboard/dashd/taskstore"
	"github.com/openclaw/dashboard/dashsdk"
)

func (r *RootCmd) tasks() *serpent.Command {
	return &serpent.Command{
		Use:     "tasks",
		Aliases: []string{"task", "todo"},
		Short:   "Manage the local task list",
		Long: "These commands edit the task file directly. A running server notices the change " +
			"once its task cache expires.",
		Children: []*serpent.Command{
			r.tasksList(),
			r.tasksCompleted(),
			r.tasksAdd(),
			r.tasksDone(),
			r.tasksReopen(),
			r.tasksRemove(),
		},
	}
}

// withTaskStore runs fn against the local store with a logger built from
// the root options.
func (r *RootCmd) withTaskStore(inv *serpent.Invocation, fn func(store *taskstore.Store) error) error {
	logger, closeLog, err := r.logger(inv)
	if err != nil {
		return err
	}
	defer closeLog()
	return fn(r.taskStore(logger))
}

func taskTable(tasks []dashsdk.Task, completed bool) table.Writer {
	when := "Created"
	if completed {
		when = "Completed"
	}
	tw := newTable(table.Row{"ID", "Title", "List", "Due", when, "Source"})
	for _, task := range tasks {
		at := task.CreatedAt
		if completed && task.CompletedAt != nil {
			at = *task.CompletedAt
		}
		tw.AppendRow(table.Row{task.ID, task.Title, task.ListName, orDash(task.DueDate), relativeTime(at), task.Source})
	}
	return tw
}

func (r *RootCmd) tasksList() *serpent.Command {
	var out outputFlag
	return &serpent.Command{
		Use:        "list",
		Aliases:    []string{"ls"},
		Short:      "List pending tasks",
		Middleware: serpent.RequireNArgs(0),
		Options:    serpent.OptionSet{out.option()},
		Handler: func(inv *serpent.Invocation) error {
			return r.withTaskStore(inv, func(store *taskstore.Store) error {
				tasks, err := store.Todos(inv.Context())
				if err != nil {
					return err
				}
				return out.write(inv.Stdout, tasks, func() table.Writer {
					return taskTable(tasks, false)
				})
			})
		},
	}
}

func (r *RootCmd) tasksCompleted() *serpent.Command {
	var (
		out   outputFlag
		limit int64
	)
	return &serpent.Command{
		Use:        "completed",
		Short:      "List recently completed tasks, newest first",
		Middleware: serpent.RequireNArgs(0),
		Options: serpent.OptionSet{
			out.option(),
			{
				Flag:        "limit",
				Description: "Maximum number of tasks to show.",
				Default:     fmt.Sprint(taskstore.DefaultCompletedLimit),
				Value:       serpent.Int64Of(&limit),
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			if limit < 1 {
				return xerrors.Errorf("--limit must be at least 1, got %d", limit)
			}
			return r.withTaskStore(inv, func(store *taskstore.Store) error {
				tasks, err := store.Completed(inv.Context(), int(limit))
				if err != nil {
					return err
				}
				return out.write(inv.Stdout, tasks, func() table.Writer {
					return taskTable(tasks, true)
				})
			})
		},
	}
}

func (r *RootCmd) tasksAdd() *serpent.Command {
	var (
		out      outputFlag
		listName string
		dueDate  string
	)
	return &serpent.Command{
		Use:        "add <title>",
		Short:      "Add a pending task",
		Middleware: serpent.RequireNArgs(1),
		Options: serpent.OptionSet{
			out.option(),
			{
				Flag:        "list",
				Description: "List the task belongs to.",
				Default:     dashsdk.DefaultListName,
				Value:       serpent.StringOf(&listName),
			},
			{
				Flag:        "due",
				Description: "Free-form due date.",
				Value:       serpent.StringOf(&dueDate),
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			return r.withTaskStore(inv, func(store *taskstore.Store) error {
				task, err := store.Create(inv.Context(), inv.Args[0], listName, dueDate)
				if err != nil {
					return err
				}
				if out.format == formatJSON {
					return writeJSON(inv.Stdout, task)
				}
				_, err = fmt.Fprintf(inv.Stdout, "Added %q as %s.\n", task.Title, task.ID)
				return err
			})
		},
	}
}

// taskMutation builds a command that changes one task by id.
func (r *RootCmd) taskMutation(use, short, verb string, mutate func(inv *serpent.Invocation, store *taskstore.Store, id string) (bool, error)) *serpent.Command {
	return &serpent.Command{
		Use:        use + " <id>",
		Short:      short,
		Middleware: serpent.RequireNArgs(1),
		Handler: func(inv *serpent.Invocation) error {
			id := inv.Args[0]
			return r.withTaskStore(inv, func(store *taskstore.Store) error {
				found, err := mutate(inv, store, id)
				if err != nil {
					return err
				}
				if !found {
					return xerrors.Errorf("task %q not found", id)
				}
				_, err = fmt.Fprintf(inv.Stdout, "%s %s.\n", verb, id)
				return err
			})
		},
	}
}

func (r *RootCmd) tasksDone() *serpent.Command {
	return r.taskMutation("done", "Mark a pending task completed", "Completed",
		func(inv *serpent.Invocation, store *taskstore.Store, id string) (bool, error) {
			_, found, err := store.Complete(inv.Context(), id)
			return found, err
		})
}

func (r *RootCmd) tasksReopen() *serpent.Command {
	return r.taskMutation("reopen", "Move a completed task back to pending", "Reopened",
		func(inv *serpent.Invocation, store *taskstore.Store, id string) (bool, error) {
			_, found, err := store.Reopen(inv.Context(), id)
			return found, err
		})
}

func (r *RootCmd) tasksRemove() *serpent.Command {
	cmd := r.taskMutation("rm", "Delete a pending task", "Deleted",
		func(inv *serpent.Invocation, store *taskstore.Store, id string) (bool, error) {
			return store.Delete(inv.Context(), id)
		})
	cmd.Aliases = []string{"delete"}
	return cmd
}
