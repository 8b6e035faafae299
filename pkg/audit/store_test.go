package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"sentrix-hq/charon/pkg/engine"
	"sentrix-hq/charon/pkg/pipeline"
)

// storeFactory builds a fresh store per test so both backends run the same
// conformance suite.
type storeFactory func(t *testing.T) Store

func backends(t *testing.T) map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(SQLiteConfig{
				Path: filepath.Join(t.TempDir(), "audit.db"),
			}, slog.New(slog.NewTextHandler(io.Discard, nil)))
			if err != nil {
				t.Fatalf("NewSQLiteStore() error: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func testOutcome(requestID string, outcome engine.Outcome) *pipeline.Outcome {
	return &pipeline.Outcome{
		RequestID: requestID,
		Mode:      pipeline.ModeFull,
		Decision: &engine.Decision{
			Outcome:        outcome,
			Confidence:     0.9,
			TriggeredRules: []string{"block_harmful"},
			RuleSetVersion: "v1",
		},
		StartedAt: time.Now(),
		TotalMs:   12,
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			want := testOutcome("req-1", engine.OutcomeBlock)
			if err := store.Record(ctx, want); err != nil {
				t.Fatalf("Record() error: %v", err)
			}

			rec, err := store.Get(ctx, "req-1")
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if rec.RequestID != "req-1" {
				t.Errorf("RequestID = %q", rec.RequestID)
			}
			if rec.Outcome.Decision == nil || rec.Outcome.Decision.Outcome != engine.OutcomeBlock {
				t.Errorf("Outcome.Decision = %+v", rec.Outcome.Decision)
			}
			if rec.Outcome.Decision.RuleSetVersion != "v1" {
				t.Errorf("RuleSetVersion = %q", rec.Outcome.Decision.RuleSetVersion)
			}
			if rec.RecordedAt.IsZero() {
				t.Error("RecordedAt is zero")
			}
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			_, err := store.Get(context.Background(), "no-such-id")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			for i := 1; i <= 5; i++ {
				id := fmt.Sprintf("req-%02d", i)
				if err := store.Record(ctx, testOutcome(id, engine.OutcomeAllow)); err != nil {
					t.Fatalf("Record(%s) error: %v", id, err)
				}
			}

			records, err := store.List(ctx, 3)
			if err != nil {
				t.Fatalf("List() error: %v", err)
			}
			if len(records) != 3 {
				t.Fatalf("List() = %d records, want 3", len(records))
			}
			if records[0].RequestID != "req-05" || records[2].RequestID != "req-03" {
				t.Errorf("order = [%s %s %s], want newest first",
					records[0].RequestID, records[1].RequestID, records[2].RequestID)
			}

			n, err := store.Count(ctx)
			if err != nil {
				t.Fatalf("Count() error: %v", err)
			}
			if n != 5 {
				t.Errorf("Count() = %d, want 5", n)
			}
		})
	}
}

func TestStore_PruneBefore(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			for i := 1; i <= 3; i++ {
				if err := store.Record(ctx, testOutcome(fmt.Sprintf("req-%d", i), engine.OutcomeAllow)); err != nil {
					t.Fatalf("Record() error: %v", err)
				}
			}

			// Cutoff in the past removes nothing.
			removed, err := store.PruneBefore(ctx, time.Now().Add(-time.Hour))
			if err != nil {
				t.Fatalf("PruneBefore() error: %v", err)
			}
			if removed != 0 {
				t.Errorf("removed = %d, want 0", removed)
			}

			// Cutoff in the future removes everything.
			removed, err = store.PruneBefore(ctx, time.Now().Add(time.Hour))
			if err != nil {
				t.Fatalf("PruneBefore() error: %v", err)
			}
			if removed != 3 {
				t.Errorf("removed = %d, want 3", removed)
			}

			n, _ := store.Count(ctx)
			if n != 0 {
				t.Errorf("Count() = %d after prune, want 0", n)
			}
		})
	}
}

func TestStore_PruneToCount(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			for i := 1; i <= 5; i++ {
				if err := store.Record(ctx, testOutcome(fmt.Sprintf("req-%02d", i), engine.OutcomeAllow)); err != nil {
					t.Fatalf("Record() error: %v", err)
				}
			}

			removed, err := store.PruneToCount(ctx, 2)
			if err != nil {
				t.Fatalf("PruneToCount() error: %v", err)
			}
			if removed != 3 {
				t.Errorf("removed = %d, want 3", removed)
			}

			records, err := store.List(ctx, 0)
			if err != nil {
				t.Fatalf("List() error: %v", err)
			}
			if len(records) != 2 {
				t.Fatalf("List() = %d records, want the 2 newest kept", len(records))
			}
			if records[0].RequestID != "req-05" || records[1].RequestID != "req-04" {
				t.Errorf("kept = [%s %s], want the newest two",
					records[0].RequestID, records[1].RequestID)
			}

			// Under the cap already: no-op.
			removed, err = store.PruneToCount(ctx, 10)
			if err != nil {
				t.Fatalf("PruneToCount() error: %v", err)
			}
			if removed != 0 {
				t.Errorf("removed = %d, want 0 under the cap", removed)
			}
		})
	}
}

func TestRetention_Prune(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		if err := store.Record(ctx, testOutcome(fmt.Sprintf("req-%d", i), engine.OutcomeAllow)); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}

	r := NewRetention(store, RetentionConfig{
		MaxRecords: 4,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	removed, err := r.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	n, _ := store.Count(ctx)
	if n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}

func TestRetention_StartValidatesSchedule(t *testing.T) {
	store := NewMemoryStore()

	r := NewRetention(store, RetentionConfig{
		Schedule: "not a cron expression",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := r.Start(context.Background()); err == nil {
		t.Error("Start() error = nil for invalid schedule")
	}

	// Empty schedule: scheduler disabled, Start succeeds.
	r = NewRetention(store, RetentionConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := r.Start(context.Background()); err != nil {
		t.Errorf("Start() error: %v", err)
	}
	r.Stop()
}

func TestRetention_StartStop(t *testing.T) {
	store := NewMemoryStore()

	r := NewRetention(store, RetentionConfig{
		MaxRecords: 100,
		Schedule:   "0 3 * * *",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Error("second Start() error = nil, want already-running error")
	}
	r.Stop()
	r.Stop() // idempotent
}
