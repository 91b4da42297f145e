// Package structure performs structural analysis of a classified DAE model.
//
// The pipeline runs in four stages, each a pure function of its inputs:
//
//  1. BuildIncidence records, for every residual equation, the unknown slots
//     it references and how often.
//  2. Match assigns each equation one slot with augmenting-path bipartite
//     matching.
//  3. Decompose orders the matched pairs into Block-Lower-Triangular form:
//     strongly connected components of the dependency graph, topologically
//     sorted, with ties broken by declaration order.
//  4. CheckWellPosed reports structural singularities and algebraic loops as
//     diagnostics.
//
// Analyze runs the whole pipeline and returns a fresh Result per call. The
// input model is never modified.
package structure
