package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/logs"
)

const backend = "http://localhost:8000"

func newTestHistory(t *testing.T) *History {
	t.Helper()
	db, err := OpenMigrated(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h := NewHistory(db, logs.Discard())
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return h
}

func item(id string, score int) api.FAQItem {
	return api.FAQItem{ID: id, Title: "FAQ " + id, Analysis: &api.Analysis{Score: api.NewScore(score)}}
}

func TestMigrator_UpIsIdempotentAndDown(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(db)
	require.NoError(t, m.Up(ctx))
	assert.ErrorIs(t, m.Up(ctx), ErrNoChange)

	v, dirty, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)

	require.NoError(t, m.Down(ctx))
	v, _, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFor("postgres://u:p@db/faq"))
	assert.Equal(t, DialectPostgres, DialectFor("postgresql://db/faq"))
	assert.Equal(t, DialectSQLite, DialectFor(".faqscorer/history.db"))
	assert.Equal(t, DialectSQLite, DialectFor(":memory:"))
}

func TestOpen_Dialect(t *testing.T) {
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DialectSQLite, db.Dialect())
}

func TestHistory_RecordSnapshotConcurrent(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)
	h.now = time.Now

	items := []api.FAQItem{item("a", 40), item("b", 90)}
	var (
		wg     sync.WaitGroup
		writes atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, wrote, err := h.RecordSnapshot(ctx, backend, items)
			assert.NoError(t, err)
			if wrote {
				writes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), writes.Load())
	snaps, err := h.Snapshots(ctx, backend, 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestHistory_RecordSnapshotSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	items := []api.FAQItem{item("a", 40), item("b", 90), {ID: "c", Title: "raw"}}
	snap, wrote, err := h.RecordSnapshot(ctx, backend, items)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, 3, snap.ItemCount)
	assert.Equal(t, 2, snap.ScoredCount)

	_, wrote, err = h.RecordSnapshot(ctx, backend, items)
	require.NoError(t, err)
	assert.False(t, wrote)

	_, wrote, err = h.RecordSnapshot(ctx, "http://other:8000", items)
	require.NoError(t, err)
	assert.True(t, wrote, "snapshots are per backend")

	list, err := h.Snapshots(ctx, backend, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestHistory_PreviousScores(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	prev, err := h.PreviousScores(ctx, backend)
	require.NoError(t, err)
	assert.Empty(t, prev)

	_, _, err = h.RecordSnapshot(ctx, backend, []api.FAQItem{item("a", 40), {ID: "c"}})
	require.NoError(t, err)
	prev, err = h.PreviousScores(ctx, backend)
	require.NoError(t, err)
	assert.Empty(t, prev, "a single snapshot has nothing to compare against")

	_, _, err = h.RecordSnapshot(ctx, backend, []api.FAQItem{item("a", 55), item("c", 10)})
	require.NoError(t, err)
	prev, err = h.PreviousScores(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 40}, prev)

	// refreshing with identical scores keeps the same baseline
	_, wrote, err := h.RecordSnapshot(ctx, backend, []api.FAQItem{item("c", 10), item("a", 55)})
	require.NoError(t, err)
	assert.False(t, wrote)
	prev, err = h.PreviousScores(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 40}, prev)
}

func TestHistory_Actions(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	_, err := h.RecordAction(ctx, ActionRun{
		BackendURL: backend, Action: api.ActionScrape,
		Result:    api.RunResult{Created: 3, Message: "done"},
		StartedAt: start, FinishedAt: start.Add(2 * time.Second),
	})
	require.NoError(t, err)
	run, err := h.RecordAction(ctx, ActionRun{
		BackendURL: backend, Action: api.ActionAnalyze, Force: true,
		ErrorText: "HTTP 500 calling POST /analyze",
		StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour + time.Second),
	})
	require.NoError(t, err)
	assert.NotEqual(t, "", run.ID.String())
	_, err = h.RecordAction(ctx, ActionRun{BackendURL: "http://other", Action: api.ActionClean, StartedAt: start})
	require.NoError(t, err)

	runs, err := h.ListActions(ctx, backend, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, api.ActionAnalyze, runs[0].Action)
	assert.True(t, runs[0].Force)
	assert.False(t, runs[0].OK())
	assert.Equal(t, time.Second, runs[0].Duration())
	assert.Equal(t, api.ActionScrape, runs[1].Action)
	assert.Equal(t, 3, runs[1].Result.Created)
	assert.Equal(t, "done", runs[1].Result.Message)
	assert.True(t, runs[1].OK())

	all, err := h.ListActions(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	limited, err := h.ListActions(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHistory_NilIsNoop(t *testing.T) {
	ctx := context.Background()
	var h *History
	assert.False(t, h.Enabled())
	_, wrote, err := h.RecordSnapshot(ctx, backend, []api.FAQItem{item("a", 1)})
	assert.NoError(t, err)
	assert.False(t, wrote)
	prev, err := h.PreviousScores(ctx, backend)
	assert.NoError(t, err)
	assert.Empty(t, prev)
	_, err = h.RecordAction(ctx, ActionRun{Action: api.ActionClean})
	assert.NoError(t, err)
	runs, err := h.ListActions(ctx, backend, 5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, h.Close())
}

func TestWithTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)
	boom := errors.New("boom")
	err := h.db.WithTx(ctx, func(tx *gorm.DB) error {
		snap := newSnapshot(backend, []api.FAQItem{item("a", 1)}, time.Now())
		require.NoError(t, h.snapshots.Insert(ctx, tx, snap))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	list, err := h.Snapshots(ctx, backend, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
