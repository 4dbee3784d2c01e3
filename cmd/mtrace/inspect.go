package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/TimelordUK/mtrace/internal/coordinator"
	"github.com/TimelordUK/mtrace/internal/events"
	"github.com/TimelordUK/mtrace/internal/render"
	"github.com/TimelordUK/mtrace/internal/source"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>...",
	Short: "Prints the traces found in the given files.",
	Long:  "Loads the files like the viewer does and prints the resulting traces, warnings and initial position.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, _ := cmd.Flags().GetInt("entries")

		e, err := loadEnv(false)
		if err != nil {
			return err
		}
		defer e.Close()

		files, err := source.ReadFiles(args)
		if err != nil {
			return err
		}

		warnings := &warningPrinter{w: os.Stderr}
		opts := e.mediatorOptions()
		opts.Notifier = warnings
		opts.Progress = &logProgress{log: e.log}
		med := e.newMediator(opts)

		ctx := context.Background()
		if err := med.OnEvent(ctx, events.FilesUploadedEvent{Files: files}); err != nil {
			return err
		}
		if err := med.OnEvent(ctx, events.TraceViewRequestEvent{}); err != nil {
			return err
		}
		if med.State() != coordinator.StateReady {
			return fmt.Errorf("no traces loaded")
		}
		return printSession(ctx, os.Stdout, med, entries)
	},
}

func init() {
	inspectCmd.Flags().IntP("entries", "n", 0, "Also print the first n entries of every trace")
}

func printSession(ctx context.Context, out io.Writer, med *coordinator.Mediator, entries int) error {
	tl := med.Session().Timeline()
	conv := tl.Converter()

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TRACE\tENTRIES\tFIRST\tLAST\tFRAMES\tSOURCE")
	for _, tr := range tl.Traces().All() {
		first, last := "--", "--"
		if e, ok := tr.First(); ok {
			first = conv.Format(e.Timestamp())
		}
		if e, ok := tr.Last(); ok {
			last = conv.Format(e.Timestamp())
		}
		frames := "no"
		if tr.HasFrameInfo() {
			frames = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", tr.Type(), tr.Len(), first, last, frames, tr.Descriptors()[0])
	}
	w.Flush()

	fmt.Fprintf(out, "\ndomain: %s\n", tl.Domain())
	if pos := tl.CurrentPosition(); pos != nil {
		fmt.Fprintf(out, "initial position: %s\n", conv.Format(pos.Timestamp()))
	}

	if entries <= 0 {
		return nil
	}
	for _, tr := range tl.Traces().All() {
		fmt.Fprintf(out, "\n%s\n", tr.Type())
		for i := 0; i < tr.Len() && i < entries; i++ {
			e, _ := tr.Entry(i)
			v, err := e.Value(ctx)
			if err != nil {
				return fmt.Errorf("%s entry %d: %w", tr.Type(), i, err)
			}
			text, level := render.Summarize(v)
			fmt.Fprintf(out, "  %5d  %s  %-7s %s\n", i, conv.Format(e.Timestamp()), level, text)
		}
	}
	return nil
}

// logProgress reports progress to the diagnostic log
type logProgress struct {
	log logrus.FieldLogger
}

func (p *logProgress) OnProgressUpdate(message string, percent float64) {
	p.log.WithField("percent", percent).Debug(message)
}

func (p *logProgress) OnOperationFinished(success bool) {
	p.log.WithField("success", success).Debug("operation finished")
}
