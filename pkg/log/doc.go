/*
Package log provides structured logging for burrow using zerolog.

The package exposes a global logger configured once at startup via Init,
plus helpers that derive child loggers carrying the fields every gateway
log line should have: the component name, the request id, and the metadata
shard a call was routed to.

In production the gateway logs JSON to stdout; during development the
console writer gives human-readable output. Request handlers obtain a
per-request child logger through WithReqID so that every line emitted
while serving a request can be correlated.
*/
package log
