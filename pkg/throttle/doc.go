/*
Package throttle provides bounded-concurrency admission control for the
gateway's front door.

A fixed number of slots bound how many requests run concurrently; a FIFO
waiting queue of fixed depth absorbs bursts. A request that arrives while
both are full is rejected and surfaces to the client as a ThrottledError
(503). Occupancy and queue depth are observable through the Observer
probes, which production wires to Prometheus gauges.
*/
package throttle
