// Package source loads RuleSet snapshots from disk and keeps the active
// snapshot current.
//
// Store holds the active RuleSet behind an atomic pointer: readers never
// lock, and a reload is a single reference swap visible only to requests
// that start after it. Watcher uses fsnotify with debouncing to trigger
// reloads when rule files change; a snapshot that fails validation is
// rejected and the last known good RuleSet stays active.
package source
