// Package audit persists decision provenance: one record per pipeline run,
// capturing the decision, triggered rules, stage timings, and failure
// attribution.
//
// The pipeline core stays persistence-free; it emits outcomes through the
// pipeline.Recorder interface and this package stores them. Two backends
// are provided: an in-memory ring for tests and small deployments, and a
// SQLite store for durable audit trails. Retention is enforced on a cron
// schedule with age and count limits.
package audit
