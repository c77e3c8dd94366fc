package assistant

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"jarvis/internal/conversation"
	"jarvis/internal/scrape"
	"jarvis/internal/tasks"
)

// Persona opens every prompt. Task names must come back in double quotes for
// the task list to pick them up.
const Persona = `You are J.A.R.V.I.S., my personal AI assistant. ` +
	`You speak in a calm, precise and articulate manner with a touch of dry wit, ` +
	`polite and efficient, anticipating needs before they are stated. ` +
	`Give concise, intelligent answers and take initiative without excessive questioning. ` +
	`Limit answers to two or three short sentences unless more detail is requested. ` +
	`YOUR ANSWERS MUST BE ONE LINE ONLY, DO NOT MAKE NEW LINES. ` +
	`When asked to add a task or reminder, give it a simple, natural name wrapped in double quotes, for example "Buy milk". ` +
	`When asked to mark a task as done or finished, repeat the exact quoted name it was added with. ` +
	`Always address me formally as Sir, with warmth and the occasional light sarcasm.`

const CapabilitiesReply = "Sir, I can create and manage your tasks, list your reminders, give weather updates, " +
	"share the top news and hold a conversation. I must admit my knowledge of the outside world " +
	"is limited to my periodic data updates."

// PromptInput holds the parts of a model prompt.
type PromptInput struct {
	Persona   string
	History   []conversation.Entry
	Data      string
	Tasks     string
	Utterance string
	Now       time.Time
}

// BuildPrompt concatenates persona, history, real-time data, task list and
// utterance, always in that order.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder
	sb.WriteString(in.Persona)
	sb.WriteString("\n\nThis is our conversation so far:\n")
	for _, e := range in.History {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "\nThis is real time data about today (%s):\n%s\n", in.Now.Format("Monday, 2 January 2006 15:04"), in.Data)
	sb.WriteString("When asked about the news, summarise the most interesting headlines.\n")
	sb.WriteString("\nThese are my current tasks and reminders, use them when I ask about tasks or reminders:\n")
	sb.WriteString(in.Tasks)
	fmt.Fprintf(&sb, "\n\nUser prompt: %s\n", in.Utterance)
	return sb.String()
}

func (a *Assistant) prompt(utterance string) (string, error) {
	history, err := a.deps.Conversation.Recent(a.cfg.HistoryWindow)
	if err != nil {
		return "", fmt.Errorf("read conversation: %w", err)
	}
	list, err := a.deps.Tasks.Load()
	if err != nil {
		return "", fmt.Errorf("load tasks: %w", err)
	}
	data, err := readData(a.cfg.DataPath)
	if err != nil {
		return "", fmt.Errorf("read real-time data: %w", err)
	}
	return BuildPrompt(PromptInput{
		Persona:   a.cfg.Persona,
		History:   history,
		Data:      data,
		Tasks:     tasks.Describe(list),
		Utterance: utterance,
		Now:       a.cfg.Now(),
	}), nil
}

// readData returns the non-blank lines of the scraped data file.
func readData(path string) (string, error) {
	if path == "" {
		return scrape.NoData, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return scrape.NoData, nil
	}
	if err != nil {
		return "", err
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return scrape.NoData, nil
	}
	return strings.Join(lines, "\n"), sc.Err()
}
