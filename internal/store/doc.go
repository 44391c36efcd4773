// Package store provides SQLite-backed durable storage for polydep analysis
// history.
//
// The store is an append-only log with:
//   - Analyses: one record per analyzed scop and option set
//   - Dependences: the relations computed by an analysis, one per kind
//   - RAR candidates: the read-after-read vectors offered for each reference
//
// # Critical Patterns
//
// Content-Addressed Lookup
//   - Analyses are keyed by (scop_hash, options_hash)
//   - A later run with identical inputs can reuse the stored relations
//
// Logical Identity and Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - The engine resumes its clock from GetLastSeq
//
// Deterministic Query Results
//   - List queries order by seq ASC, id ASC COLLATE BINARY
//   - Dependences order by kind, then untagged before tagged
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Hashes are computed by internal/ir using RFC 8785 canonical JSON and
// SHA-256 with domain separation.
package store
