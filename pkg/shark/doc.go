/*
Package shark is the client side of the data plane: the storage nodes
("sharks") that hold object body replicas.

The Agent is a shared HTTP client for every storage node. Uploads are
opened as parallel chunked PUT streams (OpenPut); the gateway tees the
client body into all of them and collects each node's Computed-MD5 from
its response. Reads fetch from replicas in order with Range passthrough.
Connection-time failures on idempotent calls are retried within a small
budget; once a body has started streaming, no retry is attempted.

The Chooser supplies candidate sets of storage nodes for a write: the
first set is the preferred placement and later sets are failover
alternatives. Production uses the external inventory service; the
InventoryChooser over a static config serves small deployments and
tests.

ObjectPath renders the node-local path for a body under the storage
layout version recorded on the object.
*/
package shark
