/*
Package config loads the gateway's YAML configuration.

A single file configures the front-door and metrics listeners, the upstream
placement service and its poll interval, object write bounds (durability,
maximum content length, upload idle timeout), throttle capacity, the
storage-node inventory used by the built-in chooser, and the accounts for
the built-in authenticator.

Defaults are applied after decoding, so an empty file plus a placement URL
is a runnable configuration. Validation rejects configs the gateway cannot
route with (no placement URL, durability above the copy cap, half-set TLS).
*/
package config
