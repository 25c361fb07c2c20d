/*
Package shardtest provides an in-memory metadata shard for tests.

The server speaks the same JSON-over-HTTP surface as a real pnode,
partitions rows by vnode, evaluates forwarded If-* conditions, and can be
told to fail specific methods with a chosen remote error. Its URL doubles
as a pnode identifier, so a test ring can map vnodes straight onto test
servers.
*/
package shardtest
