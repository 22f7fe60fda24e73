package fileutil

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// SplitFileList splits a semicolon separated path list, dropping blanks.
func SplitFileList(list string) []string {
	parts := strings.Split(list, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SearchFileList returns the first entry of the semicolon separated list that
// exists as a regular file, or "" when none does.
func SearchFileList(list string) string {
	for _, candidate := range SplitFileList(list) {
		if isRegularFile(candidate) {
			return candidate
		}
	}
	return ""
}

// SearchFileListForWidth is SearchFileList restricted to executables built
// for the given word size (32 or 64). Files whose format cannot be read are
// skipped.
func SearchFileListForWidth(list string, bits int) string {
	for _, candidate := range SplitFileList(list) {
		if !isRegularFile(candidate) {
			continue
		}
		width, err := ExecutableWidth(candidate)
		if err != nil {
			continue
		}
		if width == bits {
			return candidate
		}
	}
	return ""
}

// ErrUnknownExecutable is returned when a file is not a PE, ELF or Mach-O binary.
var ErrUnknownExecutable = errors.New("unrecognized executable format")

// ExecutableWidth reports whether path is a 32 or 64 bit executable.
func ExecutableWidth(path string) (int, error) {
	if f, err := pe.Open(path); err == nil {
		defer f.Close()
		switch f.Machine {
		case pe.IMAGE_FILE_MACHINE_I386, pe.IMAGE_FILE_MACHINE_ARMNT:
			return 32, nil
		case pe.IMAGE_FILE_MACHINE_AMD64, pe.IMAGE_FILE_MACHINE_ARM64:
			return 64, nil
		default:
			return 0, fmt.Errorf("%s: pe machine %#x: %w", path, f.Machine, ErrUnknownExecutable)
		}
	}
	if f, err := elf.Open(path); err == nil {
		defer f.Close()
		switch f.Class {
		case elf.ELFCLASS32:
			return 32, nil
		case elf.ELFCLASS64:
			return 64, nil
		default:
			return 0, fmt.Errorf("%s: elf class %v: %w", path, f.Class, ErrUnknownExecutable)
		}
	}
	if f, err := macho.Open(path); err == nil {
		defer f.Close()
		switch f.Cpu {
		case macho.Cpu386, macho.CpuArm, macho.CpuPpc:
			return 32, nil
		case macho.CpuAmd64, macho.CpuArm64, macho.CpuPpc64:
			return 64, nil
		default:
			return 0, fmt.Errorf("%s: mach-o cpu %v: %w", path, f.Cpu, ErrUnknownExecutable)
		}
	}
	return 0, fmt.Errorf("%s: %w", path, ErrUnknownExecutable)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
