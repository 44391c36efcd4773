// Package scop turns a scop description into the relations the dependence
// analysis consumes.
//
// Parameters are instantiated with the values given in the description,
// so every iteration domain is a finite set of statement instances and
// every access relation is enumerated exactly. Tagged relations pair each
// instance with the zero-dimensional tuple of the reference that produced
// the access, e.g. { [S1[3] -> w0[]] -> A[3] }.
package scop
