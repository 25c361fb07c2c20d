/*
Package shard is the client side of the metadata tier.

Each physical metadata node (pnode) exposes an RPC surface speaking JSON
over HTTP: one POST per operation, with failures carried as structured
{"name","message","context"} bodies. The Pool opens one long-lived client
per pnode present in the ring at startup; requests look clients up by the
pnode identifier their routing key hashed to. Connection management and
transparent reconnection live in the underlying http.Transport, so an
unreachable shard surfaces as a per-request error rather than a broken
pool.

The error names the metadata tier uses (BucketNotFound, EtagConflict,
NoDatabasePeers, ...) are declared here; the gateway maps them onto its
stable external taxonomy.
*/
package shard
