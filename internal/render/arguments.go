package render

import (
	"context"
	"strconv"
	"strings"

	"natronfarm/internal/logging"
)

// BuildArguments plans the project file location and returns the renderer
// arguments: "-w NAME [start-end] path" when a writer node is set, otherwise
// just the path. The range token is only emitted when both frames are
// non-zero.
func (s *Session) BuildArguments(ctx context.Context) ([]string, error) {
	if err := s.enter("build_arguments", StateExecutableResolved); err != nil {
		return nil, err
	}
	if err := s.planProjectPath(ctx); err != nil {
		return nil, s.fail(err)
	}

	var args []string
	if writer := strings.TrimSpace(s.job.Plugin.WriterNodeName); writer != "" {
		args = append(args, "-w", writer)
		if s.task.StartFrame != 0 && s.task.EndFrame != 0 {
			args = append(args, strconv.Itoa(s.task.StartFrame)+"-"+strconv.Itoa(s.task.EndFrame))
		}
	}
	args = append(args, s.projectPath)

	s.args = args
	s.state = StateArgumentsBuilt
	s.logger.Info("render arguments built", logging.String("command_line", s.CommandLine()))
	return append([]string(nil), args...), nil
}

// CommandLine renders the arguments as a single shell-style string with the
// project path double quoted.
func (s *Session) CommandLine() string {
	if len(s.args) == 0 {
		return ""
	}
	last := len(s.args) - 1
	parts := make([]string, 0, len(s.args))
	parts = append(parts, s.args[:last]...)
	parts = append(parts, `"`+s.args[last]+`"`)
	return strings.Join(parts, " ")
}
