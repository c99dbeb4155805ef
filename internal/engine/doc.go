// Package engine implements the deterministic deferred-work scheduler.
//
// A Session owns an ordered collection of pending Steps. Each Step belongs to
// one graph element and one Phase, and is stamped with a Round and an
// insertion Timestamp from the session Clock when it is enqueued.
//
// ORDERING:
//
// Steps execute in ascending (Round, Phase rank, secondary key, Timestamp)
// order. The Timestamp is strictly increasing per session, so two distinct
// Steps never compare equal and a drain is fully repeatable.
//
// EXECUTION:
//
// Session.Next pops the lowest Step, clears its queued marker, ratchets the
// session round, and runs Process. A Step may enqueue further Steps, including
// for its own element, while it runs. Session.Drain repeats Next until the
// queue is empty or the top Step lies beyond the (round, phase) bound.
//
// A session is driven by exactly one goroutine. Nothing inside a drain can be
// cancelled; callers that need deadlines wrap Drain or use a Guard.
//
// INVARIANTS:
//
// Breaches (removing a Step from a position it does not occupy, re-entrant
// drains, enqueueing a Step twice) panic with *InvariantError. Ordinary
// absence, such as no Steps for an element, is an empty result.
package engine
