package source

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fsnotify/fsnotify"

	"sentrix-hq/charon/pkg/filter"
)

func writeEvent(path string) fsnotify.Event {
	return fsnotify.Event{Name: path, Op: fsnotify.Write}
}

const baseRuleset = `
version: "v1"
risk_floor: 0.3
fallback:
  strategy: substitute
rules:
  - name: block_harmful
    kind: category_confidence
    action: block
    enabled: true
    confidence:
      category: harmful_content
      threshold: 0.8
`

const extraRuleset = `
version: "ignored"
fallback:
  strategy: substitute
rules:
  - name: flag_pii
    kind: category_match
    action: review
    enabled: true
    match:
      category: pii
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFileSource_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", baseRuleset)

	src := NewFileSource(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rs, err := src.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if rs.Version != "v1" {
		t.Errorf("Version = %q", rs.Version)
	}
	if len(rs.Rules) != 1 || rs.Rules[0].Name != "block_harmful" {
		t.Errorf("Rules = %+v", rs.Rules)
	}
}

func TestFileSource_DirectoryMerge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-base.yaml", baseRuleset)
	writeFile(t, dir, "20-extra.yml", extraRuleset)
	writeFile(t, dir, "notes.txt", "not a ruleset")

	src := NewFileSource(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rs, err := src.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// First file in lexical order provides version and parameters.
	if rs.Version != "v1" {
		t.Errorf("Version = %q, want version from first file", rs.Version)
	}
	if rs.RiskFloor != 0.3 {
		t.Errorf("RiskFloor = %v, want parameter from first file", rs.RiskFloor)
	}
	if len(rs.Rules) != 2 {
		t.Fatalf("Rules = %d, want 2 merged", len(rs.Rules))
	}
	if rs.Rules[0].Name != "block_harmful" || rs.Rules[1].Name != "flag_pii" {
		t.Errorf("merge order = [%s %s]", rs.Rules[0].Name, rs.Rules[1].Name)
	}
}

func TestFileSource_DirectoryMergeRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-base.yaml", baseRuleset)
	writeFile(t, dir, "20-dup.yaml", baseRuleset)

	src := NewFileSource(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := src.Load(); err == nil {
		t.Error("Load() error = nil, want duplicate rule name rejection")
	}
}

func TestFileSource_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"missing path", filepath.Join(dir, "absent.yaml")},
		{"empty directory", dir},
		{"invalid yaml", writeFile(t, t.TempDir(), "broken.yaml", "rules: [")},
		{"invalid ruleset", writeFile(t, t.TempDir(), "bad.yaml", "version: v2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFileSource(tt.path, slog.New(slog.NewTextHandler(io.Discard, nil)))
			if _, err := src.Load(); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestStore_SwapIsVisibleToReaders(t *testing.T) {
	first := &filter.RuleSet{Version: "v1", Fallback: filter.FallbackPolicy{Strategy: filter.FallbackSubstitute}}
	second := &filter.RuleSet{Version: "v2", Fallback: filter.FallbackPolicy{Strategy: filter.FallbackSubstitute}}

	store := NewStore(first)
	if store.Current().Version != "v1" {
		t.Fatalf("Current().Version = %q", store.Current().Version)
	}

	// A reader holding the old snapshot keeps it across a swap.
	held := store.Current()
	store.Swap(second)
	if held.Version != "v1" {
		t.Errorf("held snapshot changed to %q", held.Version)
	}
	if store.Current().Version != "v2" {
		t.Errorf("Current().Version = %q after swap", store.Current().Version)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(&filter.RuleSet{Version: "v0"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				store.Swap(&filter.RuleSet{Version: "vN"})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if rs := store.Current(); rs == nil {
					t.Error("Current() returned nil during swaps")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestWatcher_ReloadSwapsValidSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", baseRuleset)

	src := NewFileSource(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	initial, err := src.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	store := NewStore(initial)

	w := NewWatcher(src, store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	updated := `
version: "v2"
fallback:
  strategy: substitute
rules: []
`
	writeFile(t, dir, "rules.yaml", updated)
	w.reload()

	if got := store.Current().Version; got != "v2" {
		t.Errorf("Current().Version = %q, want v2 after reload", got)
	}
}

func TestWatcher_ReloadKeepsLastGoodOnInvalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", baseRuleset)

	src := NewFileSource(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	initial, err := src.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	store := NewStore(initial)

	w := NewWatcher(src, store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	writeFile(t, dir, "rules.yaml", "version: [broken")
	w.reload()

	if got := store.Current().Version; got != "v1" {
		t.Errorf("Current().Version = %q, want last known good v1", got)
	}
}

func TestWatcher_RelevantFiltersEvents(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", baseRuleset)

	src := NewFileSource(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w := NewWatcher(src, NewStore(nil), 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name  string
		event string
		want  bool
	}{
		{"watched file", path, true},
		{"other yaml in dir", filepath.Join(dir, "other.yaml"), false},
		{"hidden file", filepath.Join(dir, ".rules.yaml.swp"), false},
		{"non-yaml file", filepath.Join(dir, "rules.json"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.relevant(writeEvent(tt.event))
			if got != tt.want {
				t.Errorf("relevant(%q) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestWatcher_RelevantForDirectorySource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-base.yaml", baseRuleset)

	src := NewFileSource(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w := NewWatcher(src, NewStore(nil), 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if !w.relevant(writeEvent(filepath.Join(dir, "20-new.yaml"))) {
		t.Error("new yaml in watched directory should be relevant")
	}
	if w.relevant(writeEvent(filepath.Join(dir, "README.md"))) {
		t.Error("non-yaml in watched directory should be irrelevant")
	}
}
