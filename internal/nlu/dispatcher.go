package nlu

import (
	"fmt"

	"jarvis/internal/tasks"
)

// TaskStore is the subset of the task store the dispatcher mutates.
type TaskStore interface {
	Add(name string) (tasks.Task, error)
	MarkDone(name string) (bool, error)
	Reset() error
}

// Action describes what Dispatch did to the task list.
type Action struct {
	Intent  Intent
	Name    string
	Applied bool
}

// Dispatch applies the task mutation implied by intent, taking the task name
// from the assistant's reply. A missing name or an unmatched task is not an
// error; the action is reported as not applied.
func Dispatch(intent Intent, reply string, store TaskStore) (Action, error) {
	name, found := ExtractTaskName(reply)
	act := Action{Intent: intent, Name: name}

	switch intent {
	case AddTask:
		if !found || name == "" {
			return act, nil
		}
		if _, err := store.Add(name); err != nil {
			return act, fmt.Errorf("add task %q: %w", name, err)
		}
		act.Applied = true
	case MarkDone:
		if !found || name == "" {
			return act, nil
		}
		ok, err := store.MarkDone(name)
		if err != nil {
			return act, fmt.Errorf("mark task %q done: %w", name, err)
		}
		act.Applied = ok
	case ResetTasks:
		if err := store.Reset(); err != nil {
			return act, fmt.Errorf("reset tasks: %w", err)
		}
		act.Applied = true
	}

	return act, nil
}
