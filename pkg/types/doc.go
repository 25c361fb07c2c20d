/*
Package types defines the core data structures used throughout burrow.

This package contains the fundamental records of the gateway's domain model:
buckets, objects and their storage-node (shark) placements, listing entries,
and authenticated callers. These types are shared by the metadata shard
client, the storage-node client, the listing machinery, and the HTTP
handlers.

Buckets are a flat keyspace: an object name is an opaque UTF-8 string with
no directory semantics. An object's ID is generated at create time and is
also its externally visible etag. The sharks list records which storage
nodes hold a copy of the body; its length equals the object's durability
level, except for zero-byte objects, which carry no sharks at all and the
canonical ZeroByteMD5 digest.
*/
package types
