package jobs

import (
	"fmt"
	"time"
)

// TaskStatus represents the lifecycle of one render task.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	// TaskStatusReview marks tasks that failed on configuration problems and
	// need an operator before they are worth retrying.
	TaskStatusReview TaskStatus = "review"
)

// IsTerminal reports whether the status ends the task's lifecycle.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusReview:
		return true
	default:
		return false
	}
}

// PluginInfo holds the per-job renderer settings chosen at submission.
type PluginInfo struct {
	// Version is the dotted renderer version, e.g. "2.3".
	Version string `json:"version"`
	// Build is "32bit", "64bit" or empty for no preference.
	Build          string `json:"build,omitempty"`
	WriterNodeName string `json:"writer_node_name,omitempty"`
	// ProjectFile overrides the job data file when set.
	ProjectFile string `json:"project_file,omitempty"`
}

// Job is a unit of submitted render work.
type Job struct {
	ID          string
	Name        string
	DataFile    string
	Plugin      PluginInfo
	Environment map[string]string
	FirstFrame  int
	LastFrame   int
	ChunkSize   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SetEnvironmentKeyValue stores a variable in the job environment.
func (j *Job) SetEnvironmentKeyValue(key, value string) {
	if j.Environment == nil {
		j.Environment = make(map[string]string)
	}
	j.Environment[key] = value
}

// EnvironmentKeyValue returns a variable from the job environment.
func (j *Job) EnvironmentKeyValue(key string) (string, bool) {
	value, ok := j.Environment[key]
	return value, ok
}

// Task is one frame range of a job, executed as one renderer process.
type Task struct {
	JobID         string
	ID            int
	StartFrame    int
	EndFrame      int
	Status        TaskStatus
	Progress      float64
	StatusMessage string
	ExitCode      *int
	Failure       string
	UpdatedAt     time.Time
}

// FrameRange formats the task frames as "start-end".
func (t *Task) FrameRange() string {
	return fmt.Sprintf("%d-%d", t.StartFrame, t.EndFrame)
}

type frameChunk struct {
	start int
	end   int
}

// splitFrames cuts first..last into chunks of at most size frames.
func splitFrames(first, last, size int) []frameChunk {
	if size <= 0 {
		size = 1
	}
	if last < first {
		first, last = last, first
	}
	chunks := make([]frameChunk, 0, (last-first)/size+1)
	for start := first; start <= last; start += size {
		end := start + size - 1
		if end > last {
			end = last
		}
		chunks = append(chunks, frameChunk{start: start, end: end})
	}
	return chunks
}
