// Package deps implements the dependence and reuse analysis of a scop.
//
// Given the relations extracted by package scop, it derives every class of
// dependence the scheduler and code generator need: flow (RAW), false
// (WAR/WAW), order and forced dependences for live-range reordering, and
// the reuse-oriented read-after-read and write-after-write relations. It
// also performs dead code elimination on the iteration domain.
//
// PIPELINE (ComputeDependences):
//
//  1. Liveness: live_out is computed first, always.
//  2. Flow: with live-range reordering, tagged flow is computed, user
//     independences are removed and tags are projected away; then order
//     and forced dependences are added. Otherwise tagged flow is computed
//     when the target (or the reuse extension) needs reference identity,
//     and simple flow is computed in all remaining cases.
//  3. False dependences, from the same inputs on every path.
//  4. Reuse extension: RAR, then WAW. RAR needs tagged flow to decide
//     which reads are external.
//
// SOUNDNESS RULES:
//
// Must-kills are never flow sources. A flow edge whose source is a
// must-write survives any independence assertion, since dropping it would
// resurrect the sources that write killed. Shared-sink forced dependences
// keep multiple candidate writers of one read in order.
//
// Reuse heuristics are total: an access without a usable reuse vector gets
// the identity pseudo-dependence instead of an error.
//
// All relations are immutable values; nothing here mutates a Scop.
package deps
