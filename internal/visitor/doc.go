// Package visitor walks the element graph to discover candidate structure.
//
// A walk starts at an origin node and follows edges in one direction: Down
// toward producers (inputs) or Up toward consumers (outputs). Every walk gets
// a fresh visit id from an IDs allocator, and each node keeps the last id it
// was visited under per direction; a node already stamped with the walk's id
// is never entered again. That stamp is the only cycle breaker.
//
// The walk is kind-agnostic. Domain behaviour is injected as data:
//
//   - a Compatible predicate decides, from the walk's scope and the scopes at
//     both ends of a crossed edge, whether the walk may continue through it;
//   - Callbacks.Check decides per reached node whether it is accepted and
//     whether the walk expands from it;
//   - Callbacks.Up lets a node reached by a Down walk turn the walk: a
//     companion Up visitor with a fresh id is seeded from that node and runs
//     to completion before the Down walk continues.
//
// The frontier is an explicit queue, so deep or cyclic graphs never grow the
// call stack. Nodes are delivered parent before child; no other ordering is
// promised.
//
// Callbacks must not start another walk over the same nodes while a walk is
// in progress.
package visitor
