package render

import (
	"regexp"
	"strconv"
	"strings"

	"natronfarm/internal/logging"
	"natronfarm/internal/services"
)

var (
	startedPattern  = regexp.MustCompile(`.*Rendering started.*`)
	progressPattern = regexp.MustCompile(`.*Frame rendered: ([0-9]*).*`)
	finishedPattern = regexp.MustCompile(`.*Rendering finished.*`)
	errorPattern    = regexp.MustCompile(`.*ERROR:.*`)
)

type lineHandler struct {
	name    string
	pattern *regexp.Regexp
	handle  func(s *Session, match []string) error
}

func defaultHandlers() []lineHandler {
	return []lineHandler{
		{name: "started", pattern: startedPattern, handle: (*Session).handleStarted},
		{name: "progress", pattern: progressPattern, handle: (*Session).handleProgress},
		{name: "finished", pattern: finishedPattern, handle: (*Session).handleFinished},
		{name: "error", pattern: errorPattern, handle: (*Session).handleError},
	}
}

// HandleLine runs every handler whose pattern matches line, in registration
// order. It returns the task failure when a handler fails the task.
func (s *Session) HandleLine(line string) error {
	if err := s.enter("handle_line", StateRunning); err != nil {
		return err
	}
	line = strings.TrimRight(line, "\r\n")
	for _, h := range s.handlers {
		match := h.pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if err := h.handle(s, match); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleStarted(match []string) error {
	s.setStatus(match[0])
	s.baseProgress = 0
	s.setProgress(0)
	return nil
}

func (s *Session) handleProgress(match []string) error {
	frame, err := strconv.Atoi(match[1])
	if err != nil {
		s.logger.Debug("frame marker without frame number", logging.String("line", match[0]))
		return nil
	}
	s.currentFrame = frame
	s.setStatus("Frame rendered: " + match[1])

	start, end := s.task.StartFrame, s.task.EndFrame
	if start == end {
		s.setProgress(s.progress)
		return nil
	}
	frames := float64(end - start + 1)
	s.setProgress(s.baseProgress/frames + 100*float64(frame-start)/frames)
	return nil
}

func (s *Session) handleFinished(match []string) error {
	s.setStatus(match[0])
	s.setProgress(100)
	return nil
}

func (s *Session) handleError(match []string) error {
	if !s.cfg.StrictErrors() {
		s.logger.Debug("renderer error line ignored by lenient policy", logging.String("line", match[0]))
		return nil
	}
	s.setStatus("")
	s.setProgress(0)
	return s.fail(newTaskError(services.ErrExternalTool, "handle_line", match[0], nil))
}
