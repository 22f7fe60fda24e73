package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"natronfarm/internal/config"
	"natronfarm/internal/farm"
	"natronfarm/internal/jobs"
	"natronfarm/internal/preflight"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var taskID int
	var thread int

	cmd := &cobra.Command{
		Use:   "render <job-id>",
		Short: "Render the pending tasks of a job on this machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if thread < 0 {
				return fmt.Errorf("thread must not be negative, got %d", thread)
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
					parts := make([]string, 0, len(failed))
					for _, r := range failed {
						parts = append(parts, r.Name+": "+r.Detail)
					}
					return fmt.Errorf("preflight failed: %s", strings.Join(parts, "; "))
				}

				job, err := store.GetJob(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("load job: %w", err)
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}

				out := cmd.OutOrStdout()
				progress := newProgressPrinter(out)
				runner := farm.NewRunner(cfg, store,
					farm.WithLogger(logger),
					farm.WithProgress(progress.update),
				)

				var results []farm.Result
				if cmd.Flags().Changed("task") {
					task, err := store.GetTask(cmd.Context(), job.ID, taskID)
					if err != nil {
						return fmt.Errorf("load task: %w", err)
					}
					if task == nil {
						return fmt.Errorf("task %d of job %s not found", taskID, job.ID)
					}
					result, err := runner.Run(cmd.Context(), job, task, thread)
					if err != nil {
						return err
					}
					results = append(results, result)
				} else {
					results, err = runner.RunPending(cmd.Context(), job, thread)
					if err != nil {
						progress.finish()
						printResults(out, results)
						return err
					}
				}
				progress.finish()

				if len(results) == 0 {
					fmt.Fprintf(out, "Job %s has no pending tasks\n", job.ID)
					return nil
				}
				printResults(out, results)
				for _, result := range results {
					if result.Err != nil {
						return fmt.Errorf("%d of %d task(s) did not complete", countFailures(results), len(results))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&taskID, "task", "t", 0, "Render only this task")
	cmd.Flags().IntVar(&thread, "thread", 0, "Render slot to use; concurrent renders need distinct slots")
	return cmd
}

func printResults(out io.Writer, results []farm.Result) {
	if len(results) == 0 {
		return
	}
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		exit := "-"
		if result.ExitCode != nil {
			exit = strconv.Itoa(*result.ExitCode)
		}
		detail := ""
		if result.Err != nil {
			detail = result.Err.Error()
		}
		rows = append(rows, []string{
			strconv.Itoa(result.TaskID),
			string(result.Status),
			exit,
			result.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{Header: "Task", Numeric: true},
		{Header: "Status"},
		{Header: "Exit", Numeric: true},
		{Header: "Duration", Numeric: true},
		{Header: "Detail"},
	}, rows))
}

func countFailures(results []farm.Result) int {
	n := 0
	for _, result := range results {
		if result.Err != nil {
			n++
		}
	}
	return n
}

// progressPrinter redraws a single status line when writing to a terminal
// and stays silent otherwise, leaving the log as the record.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	dirty   bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, enabled: isTerminal(out)}
}

func (p *progressPrinter) update(task *jobs.Task, status string, progress float64) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r\033[K task %d [%s] %5.1f%% %s", task.ID, task.FrameRange(), progress, status)
	p.dirty = true
}

func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		fmt.Fprintln(p.out)
		p.dirty = false
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
