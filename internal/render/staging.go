package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"natronfarm/internal/fileutil"
	"natronfarm/internal/logging"
	"natronfarm/internal/pathmap"
	"natronfarm/internal/services"
)

// planProjectPath decides which file the renderer opens. With path mapping
// enabled the project is staged into the thread's temp directory; the copy
// itself happens in PreRender.
func (s *Session) planProjectPath(ctx context.Context) error {
	source := strings.TrimSpace(s.job.Plugin.ProjectFile)
	if source == "" {
		source = s.job.DataFile
	}
	if strings.TrimSpace(source) == "" {
		return newTaskError(services.ErrValidation, "build_arguments", "job has no project file", nil)
	}
	if s.mapper != nil {
		source = s.mapper.MapPath(source)
	}
	source = pathmap.Normalize(source, s.goos)
	s.sourcePath = source

	if !s.cfg.Render.EnablePathMapping {
		s.projectPath = source
		return nil
	}
	if s.temps == nil {
		return newTaskError(services.ErrConfiguration, "build_arguments", "path mapping enabled but no temp directory provider configured", nil)
	}
	dir, err := s.temps.Create("thread" + strconv.Itoa(s.thread))
	if err != nil {
		return newTaskError(services.ErrTransient, "build_arguments", "create temp directory", err)
	}
	s.stagedFile = filepath.Join(dir, baseName(source))
	s.projectPath = pathmap.Normalize(s.stagedFile, s.goos)
	return nil
}

// PreRender stages the project file. With path mapping enabled the source is
// rewritten into the planned temp location, keeping its permission bits on
// Linux and macOS. Returns the project path the renderer opens.
func (s *Session) PreRender(ctx context.Context) (string, error) {
	if err := s.enter("pre_render", StateArgumentsBuilt); err != nil {
		return "", err
	}
	s.logger.Info("Starting Natron Task...")

	if s.stagedFile == "" {
		s.state = StateStaged
		return s.projectPath, nil
	}

	s.logger.Info("Performing path mapping on Natron project file",
		logging.String("source", s.sourcePath),
		logging.String("staged", s.stagedFile),
	)
	info, err := os.Stat(s.sourcePath)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, fs.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return "", s.fail(newTaskError(marker, "pre_render", fmt.Sprintf("project file %s is not readable", s.sourcePath), err))
	}
	mode := os.FileMode(0o644)
	preserveMode := s.goos == "linux" || s.goos == "darwin"
	if preserveMode {
		mode = info.Mode().Perm()
	}
	if s.mapper != nil {
		err = s.mapper.MapFile(s.sourcePath, s.stagedFile, mode)
	} else {
		err = fileutil.CopyFileMode(s.sourcePath, s.stagedFile, mode)
	}
	if err == nil && preserveMode {
		err = os.Chmod(s.stagedFile, mode)
	}
	if err != nil {
		return "", s.fail(newTaskError(services.ErrTransient, "pre_render", "stage project file", err))
	}

	s.state = StateStaged
	s.logger.Debug("project file staged",
		logging.String("path", s.stagedFile),
		logging.String("size", humanize.Bytes(uint64(info.Size()))),
		logging.String("mode", mode.String()),
	)
	return s.projectPath, nil
}

// PostRender deletes the staged project copy. It runs even after a failure;
// deletion problems are logged and never fail the task.
func (s *Session) PostRender(ctx context.Context) error {
	if s.cleaned {
		return outOfOrder("post_render", StateCleanedUp)
	}
	if s.failure == nil && s.state != StateStaged && s.state != StateRunning {
		return outOfOrder("post_render", s.state)
	}

	if s.stagedFile != "" {
		if err := os.Remove(s.stagedFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(s.logger, "Failed to delete Natron Temp Project File", "staging_cleanup_failed",
				logging.String("path", s.stagedFile),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file by hand or clear paths.temp_dir"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		} else if err == nil {
			s.logger.Info("Deleted Natron Temp Project File", logging.String("path", s.stagedFile))
		}
	}

	s.cleaned = true
	if s.failure == nil {
		s.state = StateCleanedUp
	}
	s.logger.Info("Finished Natron Task.")
	return nil
}

// baseName returns the last element of path, accepting either separator.
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
