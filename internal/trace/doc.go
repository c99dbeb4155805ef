// Package trace records what a scheduling session did.
//
// A Trace is the ordered list of observer events of one session: steps
// added and executed, elements created and updated. Traces are encoded as
// canonical JSON (sorted keys, NFC strings, floats as shortest round-trip
// strings) so two runs of the same scenario produce byte-identical output
// and an identical Hash. Golden files and the replay check rely on that.
package trace
