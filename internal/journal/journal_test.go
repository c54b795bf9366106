package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"OreChat/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestRecordAndRecent(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, Entry{
		StartedAt: base,
		Persona:   "warm",
		Mode:      ModeStream,
		Turns:     2,
		Status:    StatusOK,
		Duration:  1500 * time.Millisecond,
	}))
	require.NoError(t, j.Record(ctx, Entry{
		StartedAt: base.Add(time.Minute),
		Persona:   "strict",
		Mode:      ModeBatch,
		Turns:     4,
		Status:    StatusFailed,
		Error:     "upstream unavailable",
	}))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "strict", entries[0].Persona)
	assert.Equal(t, ModeBatch, entries[0].Mode)
	assert.Equal(t, StatusFailed, entries[0].Status)
	assert.Equal(t, "upstream unavailable", entries[0].Error)
	assert.NotEmpty(t, entries[0].ID)

	assert.Equal(t, "warm", entries[1].Persona)
	assert.Equal(t, 1500*time.Millisecond, entries[1].Duration)
	assert.True(t, base.Equal(entries[1].StartedAt))
}

func TestRecent_Limit(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, Entry{Persona: "warm", Status: StatusOK}))
	}

	entries, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestJournal_StoresNoContent(t *testing.T) {
	j, path := openTestJournal(t)
	ctx := context.Background()

	msgs := []backend.ChatMessage{{Role: "user", Content: "my secret question"}}
	require.NoError(t, j.Record(ctx, Entry{
		Persona:     "warm",
		Fingerprint: Fingerprint(msgs),
		Turns:       len(msgs),
		Status:      StatusOK,
	}))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM completions WHERE fingerprint LIKE '%secret%' OR error LIKE '%secret%'`,
	).Scan(&count))
	assert.Zero(t, count)
}

func TestFingerprint(t *testing.T) {
	a := []backend.ChatMessage{{Role: "user", Content: "hi"}}
	b := []backend.ChatMessage{{Role: "assistant", Content: "hi"}}

	assert.Equal(t, Fingerprint(a), Fingerprint(a))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(nil), 64)
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	a := []backend.ChatMessage{{Role: "user", Content: "assistanthi"}}
	b := []backend.ChatMessage{{Role: "user", Content: ""}, {Role: "assistant", Content: "hi"}}
	c := []backend.ChatMessage{{Role: "us", Content: "erhi"}}
	d := []backend.ChatMessage{{Role: "user", Content: "hi"}}

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(c), Fingerprint(d))
}
