// Package tasks persists the assistant's to-do list as a JSON array shared by
// the daemon, the dashboard and the CLI.
//
// Every load self-heals: a missing file reads as an empty list and a file that
// does not decode is rewritten as "[]". Mutations run under an in-process
// mutex and a cross-process file lock and replace the file atomically.
package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"jarvis/internal/fsutil"
)

var ErrEmptyName = errors.New("tasks: empty task name")

// Task is one entry of the list. ID is empty on records written before ids
// were introduced.
type Task struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"task"`
	Done bool   `json:"done"`
}

type Store struct {
	path string
	mu   sync.Mutex
	lock *fsutil.Lock
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: fsutil.NewLock(path),
	}
}

func (s *Store) Path() string { return s.path }

// Load returns the persisted list.
func (s *Store) Load() ([]Task, error) {
	var out []Task
	err := s.locked(func() error {
		var err error
		out, err = s.load()
		return err
	})
	return out, err
}

// Save replaces the persisted list.
func (s *Store) Save(tasks []Task) error {
	return s.locked(func() error { return s.save(tasks) })
}

// Add appends a new pending task. The name is stored exactly as given and
// names are not de-duplicated.
func (s *Store) Add(name string) (Task, error) {
	if strings.TrimSpace(name) == "" {
		return Task{}, ErrEmptyName
	}
	t := Task{ID: uuid.NewString(), Name: name}
	err := s.update(func(tasks []Task) ([]Task, bool) {
		return append(tasks, t), true
	})
	return t, err
}

// MarkDone completes the first task whose name equals name ignoring case.
// It reports whether a task matched.
func (s *Store) MarkDone(name string) (bool, error) {
	var found bool
	err := s.update(func(tasks []Task) ([]Task, bool) {
		for i := range tasks {
			if strings.EqualFold(tasks[i].Name, name) {
				tasks[i].Done = true
				found = true
				return tasks, true
			}
		}
		return tasks, false
	})
	return found, err
}

// Toggle sets the done flag of the task at index. An out of range index is
// a no-op.
func (s *Store) Toggle(index int, done bool) (bool, error) {
	var found bool
	err := s.update(func(tasks []Task) ([]Task, bool) {
		if index < 0 || index >= len(tasks) {
			return tasks, false
		}
		tasks[index].Done = done
		found = true
		return tasks, true
	})
	return found, err
}

// SetDone sets the done flag of the task with the given id.
func (s *Store) SetDone(id string, done bool) (bool, error) {
	var found bool
	err := s.update(func(tasks []Task) ([]Task, bool) {
		for i := range tasks {
			if tasks[i].ID != "" && tasks[i].ID == id {
				tasks[i].Done = done
				found = true
				return tasks, true
			}
		}
		return tasks, false
	})
	return found, err
}

// Reset empties the list.
func (s *Store) Reset() error {
	return s.Save(nil)
}

// Describe renders tasks for the model prompt.
func Describe(tasks []Task) string {
	var lines []string
	for _, t := range tasks {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("Task: \"%s\" - Completed: %t", t.Name, t.Done))
	}
	if len(lines) == 0 {
		return "No tasks currently."
	}
	return strings.Join(lines, "\n")
}

func (s *Store) update(fn func([]Task) ([]Task, bool)) error {
	return s.locked(func() error {
		tasks, err := s.load()
		if err != nil {
			return err
		}
		next, changed := fn(tasks)
		if !changed {
			return nil
		}
		return s.save(next)
	})
}

func (s *Store) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Do(fn)
}

func (s *Store) load() ([]Task, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Task{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}

	var tasks []Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		if err := s.save(nil); err != nil {
			return nil, fmt.Errorf("heal tasks: %w", err)
		}
		return []Task{}, nil
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

func (s *Store) save(tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	b, err := json.MarshalIndent(tasks, "", "    ")
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	if err := fsutil.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write tasks: %w", err)
	}
	return nil
}
