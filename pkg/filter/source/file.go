package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"sentrix-hq/charon/pkg/filter"
)

// FileSource loads RuleSet snapshots from YAML files on disk.
// The path can be a single file or a directory; for a directory, all .yaml
// and .yml files are merged into one snapshot in lexical filename order.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource creates a file-based ruleset source.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		logger: logger.With("component", "ruleset.source"),
	}
}

// Load reads, merges, and validates the ruleset from the configured path.
func (s *FileSource) Load() (*filter.RuleSet, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat ruleset path %q: %w", s.path, err)
	}

	var rs *filter.RuleSet
	if info.IsDir() {
		rs, err = s.loadDirectory()
	} else {
		rs, err = s.loadFile(s.path)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded ruleset",
		"path", s.path,
		"version", rs.Version,
		"rule_count", len(rs.Rules),
	)

	return rs, nil
}

// loadFile parses a single ruleset file.
func (s *FileSource) loadFile(path string) (*filter.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset file %q: %w", path, err)
	}
	return filter.Parse(data, path)
}

// loadDirectory merges all rule files in the directory into one snapshot.
// The first file provides the version and policy parameters; later files
// contribute rules only. Lexical order keeps merges deterministic.
func (s *FileSource) loadDirectory() (*filter.RuleSet, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset directory %q: %w", s.path, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		paths = append(paths, filepath.Join(s.path, entry.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no ruleset files found in %q", s.path)
	}

	var merged *filter.RuleSet
	for _, path := range paths {
		rs, err := s.loadFile(path)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = rs
			continue
		}
		merged.Rules = append(merged.Rules, rs.Rules...)
	}

	// Re-validate the merge: rule names must stay unique across files.
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	return merged, nil
}
