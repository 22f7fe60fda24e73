package render

import (
	"fmt"
	"math"
	"slices"

	"natronfarm/internal/logging"
	"natronfarm/internal/services"
)

// ExitClass classifies a renderer exit code.
type ExitClass int

const (
	ExitSuccess ExitClass = iota
	ExitTolerated
	ExitFatal
)

func (c ExitClass) String() string {
	switch c {
	case ExitSuccess:
		return "success"
	case ExitTolerated:
		return "tolerated"
	default:
		return "fatal"
	}
}

// NormalizeExitCode folds unsigned 32-bit Windows exit statuses into their
// signed form so 0xC0000005 compares equal to -1073741819.
func NormalizeExitCode(code int) int {
	if c := int64(code); c > math.MaxInt32 && c <= math.MaxUint32 {
		return int(int32(uint32(c)))
	}
	return code
}

// ClassifyExitCode applies the tolerance list. Tolerated codes only apply
// under the lenient error policy.
func ClassifyExitCode(code int, tolerated []int, lenient bool) ExitClass {
	code = NormalizeExitCode(code)
	switch {
	case code == 0:
		return ExitSuccess
	case lenient && slices.Contains(tolerated, code):
		return ExitTolerated
	default:
		return ExitFatal
	}
}

// CheckExitCode classifies the renderer exit code and completes or fails the
// task. It must follow PostRender.
func (s *Session) CheckExitCode(code int) error {
	if err := s.enter("check_exit_code", StateCleanedUp); err != nil {
		return err
	}
	code = NormalizeExitCode(code)
	switch ClassifyExitCode(code, s.cfg.Render.ToleratedExitCodes, !s.cfg.StrictErrors()) {
	case ExitSuccess:
		s.state = StateCompleted
		s.logger.Info("renderer exited cleanly")
		return nil
	case ExitTolerated:
		s.state = StateCompleted
		logging.WarnWithContext(s.logger, "renderer returned tolerated exit code; ignoring", "exit_code_tolerated",
			logging.Int("exit_code", code),
			logging.String(logging.FieldErrorHint, "verify the rendered frames if this repeats"),
			logging.String(logging.FieldImpact, "task marked completed despite non-zero exit"),
		)
		return nil
	default:
		return s.fail(newTaskError(services.ErrExternalTool, "check_exit_code",
			fmt.Sprintf("renderer returned non-zero error code %d", code), nil))
	}
}
