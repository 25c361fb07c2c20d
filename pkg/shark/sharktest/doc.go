/*
Package sharktest provides an in-memory storage node for tests.

The server stores uploaded bodies by path, answers PUTs with the
Computed-MD5 digest of what it received (including the 469 checksum
rejection when a forwarded Content-MD5 disagrees), serves GETs with full
Range support, and can be told to fail uploads or health probes to
exercise the gateway's failover paths.
*/
package sharktest
