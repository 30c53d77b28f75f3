package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "entries.yaml"))
	require.NoError(t, err)
	return s
}

func TestAddGetRemove(t *testing.T) {
	s := testStore(t)

	entry, err := s.Add("time_date", "Time & Date time", map[string]any{
		"display_options": []string{"time"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, entry.EntryID)
	assert.Equal(t, "time_date", entry.Domain)
	assert.False(t, entry.CreatedAt.IsZero())

	got, ok := s.Get(entry.EntryID)
	require.True(t, ok)
	assert.Equal(t, entry.Title, got.Title)

	require.NoError(t, s.Remove(entry.EntryID))
	_, ok = s.Get(entry.EntryID)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Remove(entry.EntryID), ErrEntryNotFound)
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.yaml")

	s, err := Open(path)
	require.NoError(t, err)
	entry, err := s.Add("time_date", "Time & Date beat", map[string]any{
		"display_options": []string{"beat"},
	})
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)

	entries := reopened.List()
	require.Len(t, entries, 1)
	assert.Equal(t, entry.EntryID, entries[0].EntryID)
	assert.Equal(t, "Time & Date beat", entries[0].Title)

	// YAML round-trips the list as []any; Matching must still find it.
	match := reopened.Matching("time_date", map[string]any{
		"display_options": []string{"beat"},
	})
	require.NotNil(t, match)
	assert.Equal(t, entry.EntryID, match.EntryID)
}

func TestMatching(t *testing.T) {
	s := testStore(t)

	_, err := s.Add("time_date", "Time & Date time", map[string]any{
		"display_options": []string{"time"},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		domain  string
		options map[string]any
		found   bool
	}{
		{
			name:    "same options match",
			domain:  "time_date",
			options: map[string]any{"display_options": []string{"time"}},
			found:   true,
		},
		{
			name:    "json decoded options match",
			domain:  "time_date",
			options: map[string]any{"display_options": []any{"time"}},
			found:   true,
		},
		{
			name:    "different options do not match",
			domain:  "time_date",
			options: map[string]any{"display_options": []string{"date"}},
			found:   false,
		},
		{
			name:    "different length does not match",
			domain:  "time_date",
			options: map[string]any{"display_options": []string{"time", "date"}},
			found:   false,
		},
		{
			name:    "other domain does not match",
			domain:  "sun",
			options: map[string]any{"display_options": []string{"time"}},
			found:   false,
		},
		{
			name:    "missing key does not match",
			domain:  "time_date",
			options: map[string]any{"mode": "auto"},
			found:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := s.Matching(tt.domain, tt.options)
			if tt.found {
				assert.NotNil(t, match)
			} else {
				assert.Nil(t, match)
			}
		})
	}
}

func TestUpdateOptions(t *testing.T) {
	s := testStore(t)

	entry, err := s.Add("time_date", "Time & Date time", map[string]any{
		"display_options": []string{"time"},
	})
	require.NoError(t, err)

	updated, err := s.UpdateOptions(entry.EntryID, map[string]any{
		"display_options": []string{"date_time"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"date_time"}, updated.Options["display_options"])

	_, err = s.UpdateOptions("missing", nil)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestListDomain(t *testing.T) {
	s := testStore(t)

	_, err := s.Add("time_date", "a", map[string]any{"display_options": []string{"time"}})
	require.NoError(t, err)
	_, err = s.Add("sun", "b", map[string]any{})
	require.NoError(t, err)
	_, err = s.Add("time_date", "c", map[string]any{"display_options": []string{"date"}})
	require.NoError(t, err)

	entries := s.ListDomain("time_date")
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Title)
	assert.Equal(t, "c", entries[1].Title)

	assert.Len(t, s.List(), 3)
}
