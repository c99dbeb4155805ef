// Package network is a small neural taxonomy built on fields, the step
// scheduler and the visitor.
//
// Persistent structure lives in the registry: Neurons joined by Synapses.
// Each session instantiates Activations of those neurons. An activation owns
// three fields:
//
//	net    sum of weighted input values plus the neuron bias (synchronous)
//	value  f(net), deferred to the inference phase
//	fired  1 while value is above the neuron threshold (synchronous)
//
// When fired first turns on, the activation schedules a FireStep. The fire
// step walks the activation graph down to the activation's inputs, turns at
// each of them, and walks up again to find existing activations of each
// output synapse's target neuron. Matches get a LinkStep; synapses without a
// match get an ActivationStep that instantiates a new target activation.
// Structure discovered in round r is materialised in round r+1.
//
// A fired activation also schedules a TrainStep (training phase, Hebbian
// update of its input synapses) and a CountStep (counting phase, neuron
// frequency). Neurons and synapses are only mutated from the goroutine
// driving the registry's current session.
package network
