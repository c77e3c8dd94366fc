package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "todos.json"))
}

func names(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name
	}
	return out
}

func TestLoadMissingIsEmpty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestLoadHealsCorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)

	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := []Task{
		{Name: "Buy milk", Done: false},
		{ID: "b", Name: "Call mom", Done: true},
		{Name: "Buy milk", Done: true},
	}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLegacyRecordsDecode(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`[{"task":"Buy Milk","done":false}]`), 0o644))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Task{Name: "Buy Milk"}, got[0])
}

func TestAddKeepsDuplicates(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Add("Water the plants")
	require.NoError(t, err)
	b, err := s.Add("Water the plants")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Water the plants", "Water the plants"}, names(got))
	assert.False(t, got[0].Done)
}

func TestAddRejectsEmptyName(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("   ")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestAddKeepsNameAsGiven(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add(" Buy milk ")
	require.NoError(t, err)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{" Buy milk "}, names(got))
}

func TestMarkDoneCaseInsensitiveFirstMatch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`[
		{"task":"Buy Milk","done":false},
		{"task":"buy milk","done":false}
	]`), 0o644))

	found, err := s.MarkDone("buy milk")
	require.NoError(t, err)
	assert.True(t, found)

	got, err := s.Load()
	require.NoError(t, err)
	assert.True(t, got[0].Done)
	assert.False(t, got[1].Done, "only the first match is completed")
}

func TestMarkDoneNoMatchIsNoop(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("Buy milk")
	require.NoError(t, err)
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	found, err := s.MarkDone("Walk the dog")
	require.NoError(t, err)
	assert.False(t, found)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResetThenLoadIsEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("One")
	require.NoError(t, err)
	_, err = s.Add("Two")
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	got, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestToggle(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("One")
	require.NoError(t, err)

	ok, err := s.Toggle(0, true)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, idx := range []int{-1, 1, 42} {
		ok, err := s.Toggle(idx, false)
		require.NoError(t, err)
		assert.False(t, ok, "index %d", idx)
	}

	got, err := s.Load()
	require.NoError(t, err)
	assert.True(t, got[0].Done)
}

func TestSetDoneByID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("Same")
	require.NoError(t, err)
	second, err := s.Add("Same")
	require.NoError(t, err)

	ok, err := s.SetDone(second.ID, true)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Load()
	require.NoError(t, err)
	assert.False(t, got[0].Done)
	assert.True(t, got[1].Done)

	ok, err = s.SetDone("missing", true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "No tasks currently.", Describe(nil))
	assert.Equal(t, "No tasks currently.", Describe([]Task{{Name: "  "}}))
	assert.Equal(t,
		"Task: \"Buy milk\" - Completed: false\nTask: \"Call mom\" - Completed: true",
		Describe([]Task{{Name: "Buy milk"}, {Name: " "}, {Name: "Call mom", Done: true}}),
	)
	assert.Equal(t, `Task: "Say "hi"" - Completed: false`, Describe([]Task{{Name: `Say "hi"`}}))
}
