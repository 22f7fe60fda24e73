package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"natronfarm/internal/fileutil"
)

// Requirement defines an external dependency natronfarm relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Commands may be bare names resolved through PATH or absolute paths.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckExecutableList reports the first existing entry of a semicolon
// separated candidate list, mirroring how renderer lookup searches it.
func CheckExecutableList(req Requirement) Status {
	list := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     list,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if list == "" {
		status.Detail = "no candidates configured"
		return status
	}
	found := fileutil.SearchFileList(list)
	if found == "" {
		status.Detail = fmt.Sprintf("none of %d candidates exist", len(fileutil.SplitFileList(list)))
		return status
	}
	status.Command = found
	status.Available = true
	return status
}
