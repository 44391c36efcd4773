// Package engine implements the polydep batch analysis driver.
//
// The engine takes a batch of scop descriptions, extracts and analyzes
// each one in order, optionally eliminates dead code, and persists every
// outcome to the store.
//
// ARCHITECTURE:
//
// Sequential Batch Loop:
// Scops are processed one at a time in input order. Parallelism lives
// inside the analysis (per-access RAR work), never across scops, so the
// store sees writes in a fixed order.
//
// Per-Scop Flow:
//  1. Hash the scop and the options (content-addressed identity)
//  2. Reuse a stored analysis with the same hashes when caching is on
//  3. scop.Extract builds the relations
//  4. deps.ComputeDependences runs the analysis
//  5. deps.EliminateDeadCode runs when DCE is on
//  6. The outcome is stamped with Clock.Next() and written to the store
//
// ERROR HANDLING: A scop whose extraction or analysis fails is dropped.
// The error is logged, recorded as a failed analysis and carried in the
// Outcome; the batch continues ("log and continue"). Only context
// cancellation stops a batch.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// All stored analyses are stamped with a monotonic seq from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
//
// Replay:
// A stored analysis keeps the canonical scop and options, so Replay can
// recompute it and report any relation that differs.
package engine
