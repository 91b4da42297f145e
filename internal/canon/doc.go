// Package canon produces deterministic JSON encodings and content hashes.
//
// Two encodings of the same logical value are byte-identical regardless of map
// iteration order or Unicode normalisation form of the input strings. The
// structural analysis relies on this to make analysis results comparable
// across runs, and golden tests snapshot the canonical form directly.
//
// Rules:
//   - Object keys are sorted by UTF-16 code units
//   - Strings are NFC normalised; <, > and & are not escaped
//   - Floats use the shortest representation that round-trips; NaN and Inf are rejected
//   - null is written for nil
package canon
