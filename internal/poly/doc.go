// Package poly provides the integer relation algebra consumed by the
// dependence analysis.
//
// All values are immutable. Every operation returns a new Set, Map or
// Schedule and never modifies its receiver or arguments, so values can be
// shared freely between analyses and goroutines.
//
// Parameters are instantiated from the scop context before relations are
// built, which makes every iteration domain finite. Sets and maps are
// therefore represented extensionally as finite collections of integer
// tuples and every operation is exact:
//
//   - Tuple: a named integer tuple such as A[1, 2], or a wrapped pair
//     [S1[0] -> ref_r0[]] used for tagged accesses.
//   - Set / Map: finite unions of tuples / tuple pairs, grouped by space.
//   - Basic: the defining equalities of an affine access, kept alongside the
//     points so that access matrices can be read back.
//   - Schedule: an ordering oracle mapping instances to time vectors.
//   - AccessInfo / Flow: the dataflow primitive (last-writer analysis with
//     may-sources and kills).
//   - Kernel / AffineHull: exact rational linear algebra over math/big.
//
// Printing follows the familiar isl notation: { S1[0] -> S2[0]; ... }.
// Output is sorted, so printed relations are deterministic and can be
// compared textually in tests and golden files.
package poly
