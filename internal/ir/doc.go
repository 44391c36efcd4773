// Package ir provides the scop description types exchanged between the
// front end and the analysis, plus canonical serialization for them.
//
// This package imports nothing internal. The compiler produces ScopSpec
// values from CUE, the harness decodes them from YAML, and the extractor
// in internal/scop turns them into relations.
//
// Key design constraints:
//   - NO float types anywhere - integer affine arithmetic only
//   - Affine expressions are parsed once, by ParseAffine
//   - Content identity (ScopHash, OptionsHash) uses RFC 8785 canonical JSON
package ir
