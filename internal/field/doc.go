// Package field implements the computation graph: scalar Fields connected by
// weighted Links.
//
// A Field combines incoming deltas through a pluggable Rule. Synchronous
// fields recombine immediately and forward their outgoing delta to every
// connected, propagate-enabled output link. Deferred fields hold incoming
// deltas aside and enqueue a Step in their owner's session; the value only
// changes when that step runs. Placing at least one deferred field on every
// feedback cycle turns unbounded recursion into ordered scheduler passes.
//
// A Link can be registered on both endpoints without being connected, which
// is how template edges are copied before activation. Connect with
// initialize pushes the source's current value through the link; Disconnect
// with deinitialize retracts exactly what the link contributed.
package field
