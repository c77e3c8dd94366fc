// Package fsutil holds the file primitives shared by the daemon, the dashboard
// and the CLI: atomic replace-writes and cross-process advisory locks.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// WriteFile replaces path with data. The content is written to a temporary
// file in the same directory and renamed over the target, so readers see
// either the old or the new content, never a partial write.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return writeAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteFrom is WriteFile for streamed content.
func WriteFrom(path string, r io.Reader, perm os.FileMode) error {
	return writeAtomic(path, perm, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
}

func writeAtomic(path string, perm os.FileMode, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	successful := false
	defer func() {
		if !successful {
			os.Remove(tmp.Name())
		}
	}()

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	successful = true
	return nil
}

// Lock is an advisory lock on "<path>.lock" held across processes.
type Lock struct {
	fl *flock.Flock
}

func NewLock(path string) *Lock {
	return &Lock{fl: flock.New(path + ".lock")}
}

// Do runs fn while holding the lock.
func (l *Lock) Do(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", filepath.Base(l.fl.Path()), err)
	}
	defer l.fl.Unlock()
	return fn()
}
