package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/TimelordUK/mtrace/internal/events"
	"github.com/TimelordUK/mtrace/internal/source"
	"github.com/TimelordUK/mtrace/internal/trace"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>...",
	Short: "Writes the loaded trace files into one zip archive.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		drop, _ := cmd.Flags().GetStringSlice("drop")

		e, err := loadEnv(false)
		if err != nil {
			return err
		}
		defer e.Close()

		files, err := source.ReadFiles(args)
		if err != nil {
			return err
		}

		opts := e.mediatorOptions()
		opts.Notifier = &warningPrinter{w: os.Stderr}
		med := e.newMediator(opts)

		ctx := context.Background()
		if err := med.OnEvent(ctx, events.FilesUploadedEvent{Files: files}); err != nil {
			return err
		}
		for _, key := range drop {
			typ, ok := trace.ParseType(key)
			if !ok {
				return fmt.Errorf("unknown trace type %q", key)
			}
			if err := med.OnEvent(ctx, events.TraceRemoveRequestEvent{Type: typ}); err != nil {
				return err
			}
		}

		p := med.Session().Pipeline()
		if p.Traces().Len() == 0 {
			return fmt.Errorf("no traces loaded")
		}
		if output == "" {
			output = p.DownloadArchiveName()
		}

		f, err := os.Create(output)
		if err != nil {
			return err
		}
		if err := p.MakeArchive(ctx, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		info, err := os.Stat(output)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s (%s, %d traces)\n", output, humanize.Bytes(uint64(info.Size())), p.Traces().Len())
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Archive path (default derived from the first file)")
	exportCmd.Flags().StringSlice("drop", nil, "Trace types to leave out, e.g. --drop protolog,eventlog")
}
