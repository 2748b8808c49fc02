// Package uid maps caller-visible string tokens to compact numeric
// surrogate ids, one independent namespace per category.
//
// Bindings live in the wide-column store so they survive restarts:
//
//	'F' category 0x00 token   -> id     (8-byte big-endian)
//	'R' category 0x00 id      -> token
//	'C' category              -> counter
//
// Fresh ids come from an atomic increment of the category counter, which
// never moves backwards. An id released by Delete is therefore never handed
// out again.
//
// Ids are capped at MaxID (2^32-1 by default) so that callers may store
// them in a 4-byte key suffix without collisions.
package uid
