package farm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

// ErrSlotBusy is returned when another task holds the slot.
var ErrSlotBusy = errors.New("render slot busy")

// Slot is an exclusive render thread with its own temp directory.
type Slot struct {
	Thread int
	Dir    string

	lockPath string
	lock     *flock.Flock
}

// AcquireSlot locks slot thread under root and prepares its temp directory.
// Leftovers from a previous crashed task in the same slot are removed.
func AcquireSlot(root string, thread int) (*Slot, error) {
	if thread < 0 {
		return nil, fmt.Errorf("invalid slot %d", thread)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}
	name := "slot" + strconv.Itoa(thread)
	lockPath := filepath.Join(root, name+".lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: slot %d (%s)", ErrSlotBusy, thread, lockPath)
	}

	dir := filepath.Join(root, name)
	if err := os.RemoveAll(dir); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("clear slot directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("create slot directory: %w", err)
	}
	return &Slot{Thread: thread, Dir: dir, lockPath: lockPath, lock: lock}, nil
}

// Create makes a scratch directory named tag inside the slot.
func (s *Slot) Create(tag string) (string, error) {
	if tag == "" || tag != filepath.Base(tag) {
		return "", fmt.Errorf("invalid temp directory tag %q", tag)
	}
	dir := filepath.Join(s.Dir, tag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	return dir, nil
}

// Release removes the slot directory and unlocks the slot.
func (s *Slot) Release() error {
	removeErr := os.RemoveAll(s.Dir)
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("release slot lock: %w", err)
	}
	if removeErr != nil {
		return fmt.Errorf("remove slot directory: %w", removeErr)
	}
	return nil
}
