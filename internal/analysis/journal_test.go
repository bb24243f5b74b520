package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/meditalk/internal/db"
	"github.com/stupiduntilnot/meditalk/internal/model"
)

type plainErrAnalyzer struct{}

func (plainErrAnalyzer) Analyze(context.Context, Request) (Result, error) {
	return Result{}, errors.New("boom")
}

func openTestJournal(t *testing.T) (*db.Journal, func() *db.Event) {
	t.Helper()
	database, err := db.OpenDB(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.InitSchema(database))

	journal, err := db.OpenJournal(database, "test", nil, zerolog.Nop())
	require.NoError(t, err)
	tree := func() *db.Event {
		events, err := db.QuerySubtree(database, journal.Root())
		require.NoError(t, err)
		return db.BuildTree(events, journal.Root())
	}
	return journal, tree
}

func payload(t *testing.T, e *db.Event) map[string]any {
	t.Helper()
	var p map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.Payload.String), &p))
	return p
}

func TestJournaled_RecordsOutcomes(t *testing.T) {
	journal, tree := openTestJournal(t)
	backend := &fakeBackend{reply: model.Completion{Content: "fine", InputTokens: 5, OutputTokens: 2}}
	svc := NewService(backend)

	result, err := Journaled(context.Background(), svc, journal, "r-1", "cli", Request{Text: "secret question", Image: jpeg(7)})
	require.NoError(t, err)
	assert.Equal(t, "fine", result.Reply)

	backend.err = &model.BackendError{Status: 401, Err: model.ErrUnauthorized}
	_, err = Journaled(context.Background(), svc, journal, "r-2", "cli", Request{Text: "again", History: result.History})
	assert.Equal(t, KindAuthentication, KindOf(err))

	root := tree()
	require.Len(t, root.Children, 2)

	started := payload(t, root.Children[0])
	assert.Equal(t, "r-1", started["request_id"])
	assert.EqualValues(t, 7, started["image_bytes"])
	require.Len(t, root.Children[0].Children, 1)
	done := root.Children[0].Children[0]
	assert.Equal(t, db.EventAnalysisCompleted, done.EventType)
	assert.EqualValues(t, 2, payload(t, done)["history_len"])
	assert.NotContains(t, done.Payload.String, "secret")

	assert.EqualValues(t, 2, payload(t, root.Children[1])["history_len"])
	require.Len(t, root.Children[1].Children, 1)
	failed := root.Children[1].Children[0]
	assert.Equal(t, db.EventAnalysisFailed, failed.EventType)
	assert.Equal(t, string(KindAuthentication), payload(t, failed)["error_kind"])
}

func TestJournaled_UnclassifiedErrorIsBackend(t *testing.T) {
	journal, tree := openTestJournal(t)

	_, err := Journaled(context.Background(), plainErrAnalyzer{}, journal, "r-1", "http", Request{Text: "hi"})
	require.Error(t, err)

	root := tree()
	require.Len(t, root.Children, 1)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, string(KindBackend), payload(t, root.Children[0].Children[0])["error_kind"])
}

func TestJournaled_NilJournal(t *testing.T) {
	backend := &fakeBackend{reply: model.Completion{Content: "ok"}}
	result, err := Journaled(context.Background(), NewService(backend), nil, "r-1", "chat", Request{Text: "hi"})
	require.NoError(t, err)
	assert.Len(t, result.History, 2)
}
