package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
)

// Snapshot is one recorded state of a backend's FAQ scores.
type Snapshot struct {
	ID          uuid.UUID
	BackendURL  string
	FetchedAt   time.Time
	ItemCount   int
	ScoredCount int
	Items       []SnapshotItem
}

type SnapshotItem struct {
	FAQID string
	Title string
	URL   string
	Score *int
}

// ActionRun records one scrape, clean or analyze call.
type ActionRun struct {
	ID         uuid.UUID
	BackendURL string
	Action     api.Action
	Force      bool
	Result     api.RunResult
	ErrorText  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether the run succeeded.
func (a ActionRun) OK() bool { return a.ErrorText == "" }

// Duration is the wall time of the run.
func (a ActionRun) Duration() time.Duration { return a.FinishedAt.Sub(a.StartedAt) }

// SnapshotRepo persists snapshots.
type SnapshotRepo struct{ db *DB }

func NewSnapshotRepo(db *DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

func (r *SnapshotRepo) Insert(ctx context.Context, tx *gorm.DB, s Snapshot) error {
	if err := tx.Exec(`INSERT INTO snapshots(id, backend_url, fetched_at, item_count, scored_count) VALUES (?,?,?,?,?)`,
		s.ID.String(), s.BackendURL, s.FetchedAt.UTC(), s.ItemCount, s.ScoredCount).Error; err != nil {
		return wrap(err, "insert snapshot")
	}
	for _, it := range s.Items {
		if err := tx.Exec(`INSERT INTO snapshot_items(snapshot_id, faq_id, title, url, score) VALUES (?,?,?,?,?)`,
			s.ID.String(), it.FAQID, it.Title, it.URL, nullInt(it.Score)).Error; err != nil {
			return wrap(err, "insert snapshot item")
		}
	}
	return nil
}

// List returns snapshots for backendURL, newest first, without items.
func (r *SnapshotRepo) List(ctx context.Context, backendURL string, limit int) ([]Snapshot, error) {
	return r.list(r.db.gorm.WithContext(ctx), backendURL, limit)
}

func (r *SnapshotRepo) list(q *gorm.DB, backendURL string, limit int) ([]Snapshot, error) {
	rows, err := q.Raw(`SELECT id, backend_url, fetched_at, item_count, scored_count FROM snapshots
		WHERE backend_url = ? ORDER BY fetched_at DESC LIMIT ?`, backendURL, limit).Rows()
	if err != nil {
		return nil, wrap(err, "list snapshots")
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var (
			s  Snapshot
			id string
		)
		if err := rows.Scan(&id, &s.BackendURL, &s.FetchedAt, &s.ItemCount, &s.ScoredCount); err != nil {
			return nil, wrap(err, "scan snapshot")
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, wrap(err, "parse snapshot id")
		}
		out = append(out, s)
	}
	return out, wrap(rows.Err(), "list snapshots")
}

// items loads the per-FAQ rows of one snapshot.
func (r *SnapshotRepo) items(q *gorm.DB, id uuid.UUID) ([]SnapshotItem, error) {
	rows, err := q.Raw(`SELECT faq_id, title, url, score FROM snapshot_items
		WHERE snapshot_id = ? ORDER BY faq_id`, id.String()).Rows()
	if err != nil {
		return nil, wrap(err, "load snapshot items")
	}
	defer rows.Close()
	var out []SnapshotItem
	for rows.Next() {
		var (
			it    SnapshotItem
			score sql.NullInt64
		)
		if err := rows.Scan(&it.FAQID, &it.Title, &it.URL, &score); err != nil {
			return nil, wrap(err, "scan snapshot item")
		}
		if score.Valid {
			v := int(score.Int64)
			it.Score = &v
		}
		out = append(out, it)
	}
	return out, wrap(rows.Err(), "load snapshot items")
}

// ActionRepo persists action runs.
type ActionRepo struct{ db *DB }

func NewActionRepo(db *DB) *ActionRepo { return &ActionRepo{db: db} }

func (r *ActionRepo) Insert(ctx context.Context, a ActionRun) error {
	err := r.db.gorm.WithContext(ctx).Exec(`INSERT INTO action_runs(
		id, backend_url, action, force, created, updated, skipped, errors, message, error_text, started_at, finished_at
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID.String(), a.BackendURL, string(a.Action), a.Force,
		a.Result.Created, a.Result.Updated, a.Result.Skipped, a.Result.Errors, a.Result.Message,
		a.ErrorText, a.StartedAt.UTC(), a.FinishedAt.UTC(),
	).Error
	return wrap(err, "insert action run")
}

// List returns runs for backendURL, newest first. An empty backendURL lists all backends.
func (r *ActionRepo) List(ctx context.Context, backendURL string, limit int) ([]ActionRun, error) {
	q := `SELECT id, backend_url, action, force, created, updated, skipped, errors, message, error_text, started_at, finished_at
		FROM action_runs`
	args := []any{}
	if backendURL != "" {
		q += ` WHERE backend_url = ?`
		args = append(args, backendURL)
	}
	q += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.db.gorm.WithContext(ctx).Raw(q, args...).Rows()
	if err != nil {
		return nil, wrap(err, "list action runs")
	}
	defer rows.Close()
	var out []ActionRun
	for rows.Next() {
		var (
			a          ActionRun
			id, action string
		)
		if err := rows.Scan(&id, &a.BackendURL, &action, &a.Force,
			&a.Result.Created, &a.Result.Updated, &a.Result.Skipped, &a.Result.Errors, &a.Result.Message,
			&a.ErrorText, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, wrap(err, "scan action run")
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, wrap(err, "parse action run id")
		}
		a.Action = api.Action(action)
		out = append(out, a)
	}
	return out, wrap(rows.Err(), "list action runs")
}

// History is the facade used by the UI and CLI. A nil *History is valid and
// turns every call into a no-op, which is how --no-history is honored.
type History struct {
	db        *DB
	snapshots *SnapshotRepo
	actions   *ActionRepo
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewHistory(db *DB, log logrus.FieldLogger) *History {
	return &History{
		db:        db,
		snapshots: NewSnapshotRepo(db),
		actions:   NewActionRepo(db),
		log:       log,
		now:       time.Now,
	}
}

// Enabled reports whether history is persisted.
func (h *History) Enabled() bool { return h != nil }

// RecordSnapshot stores the scores of items unless they equal the latest
// snapshot for backendURL. It reports whether a row was written. The
// comparison and the insert share one transaction, serialized per backend.
func (h *History) RecordSnapshot(ctx context.Context, backendURL string, items []api.FAQItem) (Snapshot, bool, error) {
	if h == nil {
		return Snapshot{}, false, nil
	}
	snap := newSnapshot(backendURL, items, h.now())
	var existing *Snapshot
	err := h.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := h.db.lockBackend(tx, backendURL); err != nil {
			return err
		}
		latest, err := h.latestIn(tx, backendURL, 0)
		if err != nil {
			return err
		}
		if latest != nil && sameScores(latest.Items, snap.Items) {
			existing = latest
			return nil
		}
		return h.snapshots.Insert(ctx, tx, snap)
	})
	if err != nil {
		return Snapshot{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}
	h.log.WithFields(logrus.Fields{"backend": backendURL, "items": snap.ItemCount, "scored": snap.ScoredCount}).Info("recorded snapshot")
	return snap, true, nil
}

// PreviousScores returns the scores of the snapshot preceding the latest
// one, keyed by FAQ id. Since identical states are never recorded twice,
// this is the last state that differed from the current one. Unscored
// items are omitted.
func (h *History) PreviousScores(ctx context.Context, backendURL string) (map[string]int, error) {
	out := map[string]int{}
	if h == nil {
		return out, nil
	}
	prev, err := h.latest(ctx, backendURL, 1)
	if err != nil || prev == nil {
		return out, err
	}
	for _, it := range prev.Items {
		if it.Score != nil {
			out[it.FAQID] = *it.Score
		}
	}
	return out, nil
}

// Snapshots lists recorded snapshots, newest first.
func (h *History) Snapshots(ctx context.Context, backendURL string, limit int) ([]Snapshot, error) {
	if h == nil {
		return nil, nil
	}
	return h.snapshots.List(ctx, backendURL, limit)
}

// RecordAction stores a finished action run, assigning its id.
func (h *History) RecordAction(ctx context.Context, a ActionRun) (ActionRun, error) {
	if h == nil {
		return a, nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.FinishedAt.IsZero() {
		a.FinishedAt = h.now()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = a.FinishedAt
	}
	if err := h.actions.Insert(ctx, a); err != nil {
		return a, err
	}
	h.log.WithFields(logrus.Fields{"backend": a.BackendURL, "action": a.Action, "ok": a.OK()}).Info("recorded action run")
	return a, nil
}

// ListActions returns recent runs, newest first.
func (h *History) ListActions(ctx context.Context, backendURL string, limit int) ([]ActionRun, error) {
	if h == nil {
		return nil, nil
	}
	return h.actions.List(ctx, backendURL, limit)
}

// Close releases the database.
func (h *History) Close() error {
	if h == nil {
		return nil
	}
	return h.db.Close()
}

// latest loads the snapshot at offset (0 = newest) with its items.
func (h *History) latest(ctx context.Context, backendURL string, offset int) (*Snapshot, error) {
	return h.latestIn(h.db.gorm.WithContext(ctx), backendURL, offset)
}

func (h *History) latestIn(q *gorm.DB, backendURL string, offset int) (*Snapshot, error) {
	list, err := h.snapshots.list(q, backendURL, offset+1)
	if err != nil || len(list) <= offset {
		return nil, err
	}
	s := list[offset]
	if s.Items, err = h.snapshots.items(q, s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

func newSnapshot(backendURL string, items []api.FAQItem, now time.Time) Snapshot {
	s := Snapshot{ID: uuid.New(), BackendURL: backendURL, FetchedAt: now.UTC(), ItemCount: len(items)}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ID == "" || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		row := SnapshotItem{FAQID: it.ID, Title: it.Title, URL: it.URL}
		if v, ok := it.Score(); ok {
			row.Score = &v
			s.ScoredCount++
		}
		s.Items = append(s.Items, row)
	}
	return s
}

func sameScores(a, b []SnapshotItem) bool {
	if len(a) != len(b) {
		return false
	}
	idx := make(map[string]*int, len(a))
	for _, it := range a {
		idx[it.FAQID] = it.Score
	}
	for _, it := range b {
		prev, ok := idx[it.FAQID]
		if !ok {
			return false
		}
		if (prev == nil) != (it.Score == nil) || (prev != nil && *prev != *it.Score) {
			return false
		}
	}
	return true
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
