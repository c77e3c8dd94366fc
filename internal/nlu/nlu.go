// Package nlu turns a transcribed utterance into a task-management intent and
// pulls task names out of the assistant's replies.
//
// Classification is plain substring matching over a fixed, ordered rule set.
// Overlapping keywords are resolved by rule order, not by scoring.
package nlu

import (
	"regexp"
	"strings"
)

type Intent string

const (
	None             Intent = ""
	ListCapabilities Intent = "list_capabilities"
	AddTask          Intent = "add_task"
	MarkDone         Intent = "mark_done"
	ResetTasks       Intent = "reset_tasks"
	ListTasks        Intent = "list_tasks"
)

func (i Intent) String() string {
	if i == None {
		return "none"
	}
	return string(i)
}

var (
	taskWords     = []string{"task", "tasks", "reminder", "reminders", "remind"}
	doneWords     = []string{"done", "complete", "finished"}
	listWords     = []string{"tasks", "reminders"}
	resetWords    = []string{"reset", "clear"}
	showWords     = []string{"list", "show"}
	markWords     = []string{"mark", "update"}
	capabilityAsk = []string{"what can you do", "help"}
)

// Classify maps an utterance to an intent. The first matching rule wins.
func Classify(utterance string) Intent {
	p := strings.ToLower(strings.TrimSpace(utterance))

	switch {
	case containsAny(p, capabilityAsk):
		return ListCapabilities
	case (strings.Contains(p, "add") && containsAny(p, taskWords)) || strings.Contains(p, "remind"):
		return AddTask
	case containsAny(p, markWords) && containsAny(p, doneWords):
		return MarkDone
	case containsAny(p, listWords) && containsAny(p, resetWords):
		return ResetTasks
	case containsAny(p, listWords) && containsAny(p, showWords):
		return ListTasks
	}
	return None
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

var quotedRe = regexp.MustCompile(`"(.*?)"`)

// ExtractTaskName returns the content of the first double-quoted substring of
// reply. The persona asks the model to quote task names, so a reply without
// quotes simply carries no name.
func ExtractTaskName(reply string) (string, bool) {
	m := quotedRe.FindStringSubmatch(reply)
	if m == nil {
		return "", false
	}
	return m[1], true
}
