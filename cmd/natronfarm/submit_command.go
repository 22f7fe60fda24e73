package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"natronfarm/internal/config"
	"natronfarm/internal/ecosystem"
	"natronfarm/internal/jobs"
	"natronfarm/internal/propagator"
)

type submitOptions struct {
	name        string
	version     string
	build       string
	writer      string
	projectFile string
	frames      string
	chunkSize   int
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit <project.ntp>",
		Short: "Submit a Natron project as a render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := opts.job(args[0])
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				// The propagator's save is the job's first insert, so a
				// resolution failure leaves nothing queued.
				creator := &jobCreator{store: store}
				prop := propagator.New(ecosystem.NewFileResolver(cfg), creator, propagator.WithLogger(logger))
				if err := prop.OnJobSubmitted(cmd.Context(), job); err != nil {
					return fmt.Errorf("propagate environment for job %s: %w", job.ID, err)
				}
				if !creator.created {
					if err := store.CreateJob(cmd.Context(), job); err != nil {
						return fmt.Errorf("create job: %w", err)
					}
				}
				tasks, err := store.ListTasks(cmd.Context(), job.ID)
				if err != nil {
					return fmt.Errorf("list tasks: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Submitted job %s (%q)\n", job.ID, job.Name)
				fmt.Fprintf(out, "Frames %d-%d in %d task(s), %d environment variable(s)\n",
					job.FirstFrame, job.LastFrame, len(tasks), len(job.Environment))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Job name (defaults to the project file name)")
	cmd.Flags().StringVar(&opts.version, "version", "2.0", "Natron version to render with")
	cmd.Flags().StringVar(&opts.build, "build", "", "Force a 32bit or 64bit renderer build (Windows only)")
	cmd.Flags().StringVarP(&opts.writer, "writer", "w", "", "Write node to render")
	cmd.Flags().StringVar(&opts.projectFile, "project-file", "", "Render this project file instead of the submitted one")
	cmd.Flags().StringVarP(&opts.frames, "frames", "f", "1", "Frame range, e.g. 1-100")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 1, "Frames per task")
	return cmd
}

// jobCreator inserts the job when the propagator saves it.
type jobCreator struct {
	store   *jobs.Store
	created bool
}

func (c *jobCreator) SaveJob(ctx context.Context, job *jobs.Job) error {
	if err := c.store.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	c.created = true
	return nil
}

func (o submitOptions) job(dataFile string) (*jobs.Job, error) {
	dataFile = strings.TrimSpace(dataFile)
	if dataFile == "" {
		return nil, fmt.Errorf("project file is required")
	}
	first, last, err := parseFrameRange(o.frames)
	if err != nil {
		return nil, err
	}
	if o.chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1, got %d", o.chunkSize)
	}
	build := strings.ToLower(strings.TrimSpace(o.build))
	switch build {
	case "", "none", "32bit", "64bit":
	default:
		return nil, fmt.Errorf("build: unsupported value %q (use 32bit or 64bit)", o.build)
	}
	if build == "none" {
		build = ""
	}
	name := strings.TrimSpace(o.name)
	if name == "" {
		name = jobNameFromPath(dataFile)
	}
	return &jobs.Job{
		ID:       uuid.NewString(),
		Name:     name,
		DataFile: dataFile,
		Plugin: jobs.PluginInfo{
			Version:        strings.TrimSpace(o.version),
			Build:          build,
			WriterNodeName: strings.TrimSpace(o.writer),
			ProjectFile:    strings.TrimSpace(o.projectFile),
		},
		FirstFrame: first,
		LastFrame:  last,
		ChunkSize:  o.chunkSize,
	}, nil
}

// parseFrameRange accepts "N" or "A-B".
func parseFrameRange(raw string) (int, int, error) {
	raw = strings.TrimSpace(raw)
	startRaw, endRaw, found := strings.Cut(raw, "-")
	if !found {
		endRaw = startRaw
	}
	first, err := strconv.Atoi(strings.TrimSpace(startRaw))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid frame range %q", raw)
	}
	last, err := strconv.Atoi(strings.TrimSpace(endRaw))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid frame range %q", raw)
	}
	if last < first {
		return 0, 0, fmt.Errorf("invalid frame range %q: end before start", raw)
	}
	return first, last, nil
}

// jobNameFromPath turns "shot_010_comp.ntp" into "Shot 010 Comp".
func jobNameFromPath(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "Untitled"
	}
	return cases.Title(language.Und).String(base)
}
