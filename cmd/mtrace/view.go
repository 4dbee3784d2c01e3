package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/TimelordUK/mtrace/internal/coordinator"
	"github.com/TimelordUK/mtrace/internal/events"
	"github.com/TimelordUK/mtrace/internal/source"
	"github.com/TimelordUK/mtrace/internal/timeline"
	"github.com/TimelordUK/mtrace/internal/ui"
)

var viewCmd = &cobra.Command{
	Use:   "view <file>...",
	Short: "Open trace files in the terminal viewer.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gotoTime, _ := cmd.Flags().GetString("time")

		e, err := loadEnv(true)
		if err != nil {
			return err
		}
		defer e.Close()

		files, err := source.ReadFiles(args)
		if err != nil {
			return err
		}

		var med *coordinator.Mediator
		model := ui.NewModel(ui.Options{
			Config:   e.cfg,
			Timeline: func() *timeline.Timeline { return med.Session().Timeline() },
			Title:    title(args),
		})
		opts := e.mediatorOptions()
		opts.Host = model
		opts.Notifier = model
		opts.Progress = model
		med = e.newMediator(opts)

		ctx := context.Background()
		for _, ev := range []events.Event{
			events.AppInitializedEvent{},
			events.FilesUploadedEvent{Files: files},
			events.TraceViewRequestEvent{},
		} {
			if err := med.OnEvent(ctx, ev); err != nil {
				return err
			}
		}
		if len(model.Panes()) == 0 {
			for _, w := range model.Warnings() {
				fmt.Println("warning:", w)
			}
			return fmt.Errorf("no traces to show")
		}
		if gotoTime != "" && !model.GotoTime(gotoTime) {
			return fmt.Errorf("cannot parse time %q", gotoTime)
		}

		p := tea.NewProgram(model, tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	viewCmd.Flags().StringP("time", "t", "", "Go to time (e.g., 14:00, 14:30:00, 1h2m3s)")
}

func title(args []string) string {
	if len(args) == 1 {
		return filepath.Base(args[0])
	}
	return fmt.Sprintf("%s +%d", filepath.Base(args[0]), len(args)-1)
}
