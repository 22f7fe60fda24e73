package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"natronfarm/internal/config"
	"natronfarm/internal/ecosystem"
	"natronfarm/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect submitted jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs with task progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				list, err := store.ListJobs(cmd.Context())
				if err != nil {
					return fmt.Errorf("list jobs: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs submitted")
					return nil
				}

				rows := make([][]string, 0, len(list))
				for _, job := range list {
					tasks, err := store.ListTasks(cmd.Context(), job.ID)
					if err != nil {
						return fmt.Errorf("list tasks for %s: %w", job.ID, err)
					}
					rows = append(rows, []string{
						job.ID,
						job.Name,
						job.Plugin.Version,
						fmt.Sprintf("%d-%d", job.FirstFrame, job.LastFrame),
						taskSummary(tasks),
						humanize.Time(job.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{Header: "ID"},
					{Header: "Name"},
					{Header: "Natron"},
					{Header: "Frames", Numeric: true},
					{Header: "Tasks"},
					{Header: "Submitted"},
				}, rows))
				return nil
			})
		},
	}
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job, its environment and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				job, err := store.GetJob(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("load job: %w", err)
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				tasks, err := store.ListTasks(cmd.Context(), job.ID)
				if err != nil {
					return fmt.Errorf("list tasks: %w", err)
				}
				printJob(cmd.OutOrStdout(), job, tasks)
				return nil
			})
		},
	}
}

func printJob(out io.Writer, job *jobs.Job, tasks []*jobs.Task) {
	fmt.Fprintf(out, "Job:        %s\n", job.ID)
	fmt.Fprintf(out, "Name:       %s\n", job.Name)
	fmt.Fprintf(out, "Project:    %s\n", job.DataFile)
	if job.Plugin.ProjectFile != "" {
		fmt.Fprintf(out, "Override:   %s\n", job.Plugin.ProjectFile)
	}
	fmt.Fprintf(out, "Natron:     %s\n", job.Plugin.Version)
	if job.Plugin.Build != "" {
		fmt.Fprintf(out, "Build:      %s\n", job.Plugin.Build)
	}
	if job.Plugin.WriterNodeName != "" {
		fmt.Fprintf(out, "Writer:     %s\n", job.Plugin.WriterNodeName)
	}
	fmt.Fprintf(out, "Frames:     %d-%d (chunk %d)\n", job.FirstFrame, job.LastFrame, job.ChunkSize)
	fmt.Fprintf(out, "Submitted:  %s\n", humanize.Time(job.CreatedAt))

	if len(job.Environment) > 0 {
		fmt.Fprintln(out, "Environment:")
		for _, key := range ecosystem.SortedKeys(job.Environment) {
			fmt.Fprintf(out, "  %s=%s\n", key, job.Environment[key])
		}
	}

	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		exit := "-"
		if task.ExitCode != nil {
			exit = strconv.Itoa(*task.ExitCode)
		}
		message := task.StatusMessage
		if task.Failure != "" {
			message = task.Failure
		}
		rows = append(rows, []string{
			strconv.Itoa(task.ID),
			task.FrameRange(),
			string(task.Status),
			fmt.Sprintf("%.0f%%", task.Progress),
			exit,
			message,
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{Header: "Task", Numeric: true},
		{Header: "Frames", Numeric: true},
		{Header: "Status"},
		{Header: "Progress", Numeric: true},
		{Header: "Exit", Numeric: true},
		{Header: "Message"},
	}, rows))
}

// taskSummary reports "done/total" plus a count of failed tasks.
func taskSummary(tasks []*jobs.Task) string {
	var done, failed int
	for _, task := range tasks {
		switch task.Status {
		case jobs.TaskStatusCompleted:
			done++
		case jobs.TaskStatusFailed, jobs.TaskStatusReview:
			failed++
		}
	}
	summary := fmt.Sprintf("%d/%d", done, len(tasks))
	if failed > 0 {
		summary += fmt.Sprintf(" (%d failed)", failed)
	}
	return summary
}
