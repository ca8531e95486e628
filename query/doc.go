// Package query translates generic CRUD query objects into the native predicate and
// call-options vocabulary understood by the document stores in this module.
//
// A request flows through four pure steps:
//
//	[raw query] → Normalize → MapOperators → Reconcile (by-id paths) → FindOptions/DefaultOptions
//
// # Query objects
//
// Incoming queries are plain maps, typically decoded from JSON:
//
//	{
//	    "name":    {"$ne": "Dave"},
//	    "age":     {"$gte": 18},
//	    "$or":     [{"role": "admin"}, {"role": "owner"}],
//	    "$select": ["name"],
//	    "$sort":   {"age": -1},
//	    "$limit":  10,
//	}
//
// Directive keys ($select, $sort, $limit, $skip, $ignoreCase) shape the result and are
// removed from the predicate. Everything else describes which records match.
//
// # Predicates
//
// [Predicate] is an ordered conjunction of [Node] values. Node is a sealed interface;
// the variants are [Literal], [Operator], [Membership], [Negation], [Conjunction]
// and [Disjunction], so stores can switch over them exhaustively.
//
// # Operators
//
// Standard operators are always accepted: $ne, $in, $nin, $lt, $lte, $gt, $gte.
// Extended operators must be whitelisted: $eq, $neq, $like, $notLike, $btw, $notBtw,
// $isNull, $isNotNull, $isMissing, $isNotMissing, $isValued, $isNotValued and the
// per-field $ignoreCase flag.
//
// [MapOperators] rewrites the generic forms into native ones:
//
//	$ne  → $neq
//	$in  → Membership{Field, Values}
//	$nin → Negation{Membership{Field, Values}}
//
// # Errors
//
// Malformed queries and directives return errors wrapping [ErrInvalidQuery].
package query
