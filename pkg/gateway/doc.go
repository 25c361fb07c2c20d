/*
Package gateway is the front-door HTTP request engine of the object
store.

Every request runs a pipeline: authenticate, resolve the owner account,
validate the bucket and object names, parse the If-* headers, authorize,
and then perform the operation against the metadata tier and, for object
bodies, the storage tier.

Writes tee the client body through an MD5 checkpoint into parallel PUT
streams against a candidate set of storage nodes, and commit metadata
only after every node has acknowledged and all digests agree. Reads try
the object's replicas in order and stream the winner through the same
checkpoint to the client. Listings fan out to every vnode in the
placement snapshot and k-way merge the sorted pages into an NDJSON
stream with prefix/delimiter grouping.

Each request captures the ring snapshot once at entry, so placement
refreshes never split a request across two topologies. Admission is
bounded by a slot/queue throttle, and the Probes interface surfaces the
events (throttled, queued, client-close) the operators alert on.
*/
package gateway
