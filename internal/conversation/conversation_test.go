package conversation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "conv.txt")
	l := NewLog(path)

	lines, err := l.Lines()
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.NoError(t, l.Append(
		Entry{User, "What's the time?"},
		Entry{Assistant, "Half past nine,\nSir."},
	))
	require.NoError(t, l.Append(Entry{User, "Thanks"}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "User: What's the time?\nAssistant: Half past nine, Sir.\nUser: Thanks\n", string(b))

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{User, "What's the time?"},
		{Assistant, "Half past nine, Sir."},
		{User, "Thanks"},
	}, entries)
}

func TestAppendKeepsInnerWhitespace(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "conv.txt"))
	require.NoError(t, l.Append(Entry{Assistant, "Sure.  Two  spaces\tand tab\r\nthen a break"}))

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Sure.  Two  spaces\tand tab then a break", entries[0].Text)
}

func TestLinesSkipsBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conv.txt")
	require.NoError(t, os.WriteFile(path, []byte("User: hi\n\n   \nJarvis: hello\n"), 0o644))

	lines, err := NewLog(path).Lines()
	require.NoError(t, err)
	assert.Equal(t, []string{"User: hi", "Jarvis: hello"}, lines)
}

func TestRecent(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "conv.txt"))
	for _, s := range []string{"a", "b", "c", "d"} {
		require.NoError(t, l.Append(Entry{User, s}))
	}

	got, err := l.Recent(2)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{User, "c"}, {User, "d"}}, got)

	got, err = l.Recent(0)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestReset(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "conv.txt"))
	require.NoError(t, l.Append(Entry{User, "hello"}))
	require.NoError(t, l.Reset())

	lines, err := l.Lines()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestParseEntry(t *testing.T) {
	assert.Equal(t, Entry{Assistant, "Yes: indeed"}, ParseEntry("Assistant: Yes: indeed"))
	assert.Equal(t, Entry{Text: "no speaker here"}, ParseEntry("no speaker here"))
	assert.Equal(t, Entry{Text: "two words: text"}, ParseEntry("two words: text"))
	assert.Equal(t, "plain", Entry{Text: "plain"}.String())
}
