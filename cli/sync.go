package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/afero"

	"github.com/coder/serpent"

	"github.com/openclaw/dashboard/dashd/reminders"
	"github.com/openclaw/dashboard/dashsdk"
)

// reminderFlags selects the external task source for sync and server.
type reminderFlags struct {
	listName      string
	remindctlPath string
}

func (f *reminderFlags) options() serpent.OptionSet {
	return serpent.OptionSet{
		{
			Name:        "Reminders List",
			Flag:        "reminders-list",
			Env:         envPrefix + "REMINDERS_LIST",
			YAML:        "reminders_list",
			Description: "Reminders list pulled into the task list.",
			Default:     reminders.DefaultReminderList,
			Value:       serpent.StringOf(&f.listName),
		},
		{
			Name:        "remindctl Path",
			Flag:        "remindctl-path",
			Env:         envPrefix + "REMINDCTL_PATH",
			YAML:        "remindctl_path",
			Description: "Path to the remindctl binary. Looked up on PATH and in common install directories when empty.",
			Value:       serpent.StringOf(&f.remindctlPath),
		},
	}
}

func (f *reminderFlags) remindctl() *reminders.Remindctl {
	return &reminders.Remindctl{
		Binary:   f.remindctlPath,
		ListName: f.listName,
	}
}

func (r *RootCmd) sync() *serpent.Command {
	var (
		source        reminderFlags
		pendingFile   string
		completedFile string
		out           outputFlag
	)
	opts := serpent.OptionSet{
		{
			Flag:        "pending-file",
			Description: "Read the pending snapshot from a JSON file instead of running remindctl.",
			Value:       serpent.StringOf(&pendingFile),
		},
		{
			Flag:        "completed-file",
			Description: "Read the completed snapshot from a JSON file instead of running remindctl.",
			Value:       serpent.StringOf(&completedFile),
		},
		out.option(),
	}
	opts = append(opts, source.options()...)

	return &serpent.Command{
		Use:   "sync",
		Short: "Reconcile the task list with the external reminders source once",
		Long: "Without snapshot files the pending and completed lists are read through remindctl. " +
			"With either file set only the given sides are reconciled.",
		Middleware: serpent.RequireNArgs(0),
		Options:    opts,
		Handler: func(inv *serpent.Invocation) error {
			ctx := inv.Context()
			logger, closeLog, err := r.logger(inv)
			if err != nil {
				return err
			}
			defer closeLog()

			var src reminders.Source = source.remindctl()
			if pendingFile != "" || completedFile != "" {
				src = &reminders.FileSource{
					FS:            afero.NewOsFs(),
					PendingPath:   pendingFile,
					CompletedPath: completedFile,
					DefaultList:   source.listName,
				}
			}
			syncer := reminders.NewSyncer(reminders.SyncerOptions{
				Source: src,
				Store:  r.taskStore(logger),
				Logger: logger,
			})
			res, syncErr := syncer.SyncOnce(ctx)
			if err := out.write(inv.Stdout, res, func() table.Writer { return syncTable(res) }); err != nil {
				return err
			}
			return syncErr
		},
	}
}

func syncTable(res dashsdk.SyncTasksResponse) table.Writer {
	tw := newTable(table.Row{"Collection", "Received", "Synced", "Kept", "Dropped", "Removed"})
	add := func(name string, r *dashsdk.ReconcileResult) {
		if r == nil {
			tw.AppendRow(table.Row{name, "-", "-", "-", "-", "-"})
			return
		}
		tw.AppendRow(table.Row{name, r.Received, r.Synced, r.Kept, r.Dropped, r.Removed})
	}
	add("pending", res.Pending)
	add("completed", res.Completed)
	return tw
}
