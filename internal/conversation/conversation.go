// Package conversation keeps the append-only dialogue log as plain text, one
// "<Speaker>: <text>" line per entry.
package conversation

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"jarvis/internal/fsutil"
)

type Speaker string

const (
	User      Speaker = "User"
	Assistant Speaker = "Assistant"
)

type Entry struct {
	Speaker Speaker
	Text    string
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// String renders the persisted line. Each line break inside the text becomes
// a space so an entry always occupies exactly one line; other whitespace is
// kept as written.
func (e Entry) String() string {
	text := lineBreaks.Replace(e.Text)
	if e.Speaker == "" {
		return text
	}
	return string(e.Speaker) + ": " + text
}

// ParseEntry splits a persisted line. Lines without a "Speaker: " prefix come
// back with an empty speaker and the whole line as text.
func ParseEntry(line string) Entry {
	line = strings.TrimSpace(line)
	if sp, text, ok := strings.Cut(line, ": "); ok && sp != "" && !strings.ContainsAny(sp, " \t") {
		return Entry{Speaker: Speaker(sp), Text: text}
	}
	return Entry{Text: line}
}

type Log struct {
	path string
	mu   sync.Mutex
	lock *fsutil.Lock
}

func NewLog(path string) *Log {
	return &Log{path: path, lock: fsutil.NewLock(path)}
}

// Append writes entries in order at the end of the log.
func (l *Log) Append(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lock.Do(func() error {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open conversation: %w", err)
		}
		if _, err := f.Write(buf.Bytes()); err != nil {
			f.Close()
			return fmt.Errorf("append conversation: %w", err)
		}
		return f.Close()
	})
}

// Lines returns the non-blank persisted lines, trimmed, oldest first.
func (l *Log) Lines() ([]string, error) {
	b, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read conversation: %w", err)
	}

	lines := []string{}
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return lines, nil
}

func (l *Log) Entries() ([]Entry, error) {
	lines, err := l.Lines()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(lines))
	for i, line := range lines {
		out[i] = ParseEntry(line)
	}
	return out, nil
}

// Recent returns at most n of the newest entries, oldest first. n <= 0
// returns the whole log.
func (l *Log) Recent(n int) ([]Entry, error) {
	all, err := l.Entries()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// Reset truncates the log.
func (l *Log) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lock.Do(func() error {
		return fsutil.WriteFile(l.path, nil, 0o644)
	})
}
