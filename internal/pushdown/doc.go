// Package pushdown maps a relational filter onto the store's native access
// patterns.
//
// ARCHITECTURE:
//
//	[filterir.Predicate] → Translate → [Result] → NewPlan → [Plan]
//
// Translate splits the filter into OR'd disjuncts of AND'd comparisons and
// classifies every comparison against the table's keys:
//
//   - hashKey = :v          the disjunct's hash-key filter (at most one)
//   - sortKey op :v         a sort-key filter, op in =,<,<=,>,>= (at most two,
//     and two only as a >= / <= closed range)
//   - anything else         a residual filter
//
// Every literal is bound to a fresh placeholder (:v1, :v2, ...) recorded in
// the result's value list. The expression strings never contain literals.
//
// NewPlan makes a binary, structural choice:
//
//   - every disjunct has a hash-key filter: one Query per disjunct, each with a
//     key condition (hash [AND sort | AND sort BETWEEN lo AND hi]) and a filter
//     over the residuals
//   - otherwise: one Scan whose filter ORs every disjunct's complete AND-group
//
// There is no cost model and no partial query + partial scan hybrid. A mixed
// set of disjuncts always degrades to a single scan.
//
// Both functions are pure. A Result and a Plan are immutable once returned
// and safe to share.
package pushdown
