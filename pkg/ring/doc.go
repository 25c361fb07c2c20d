/*
Package ring implements consistent-hash metadata placement.

Placement data maps a fixed keyspace of virtual nodes (vnodes) onto the
physical metadata shards (pnodes). A routing key is hashed with the
algorithm named in the placement data, the hash is divided by the vnode
hash interval to select a vnode, and the vnode's current pnode owns the
key's metadata. Bucket keys are "owner:bucket"; object keys are
"owner:bucket_id:md5hex(object_name)" so placement is reproducible from
fixed-size fields stored on the data plane.

Snapshots are immutable and replaced atomically. The Ring fetches the
initial snapshot from the placement service at startup (falling back to a
bbolt-cached copy if the service is down, since a gateway that cannot
route cannot start) and then refreshes on a poll interval, retaining the
previous snapshot on any refresh failure.
*/
package ring
