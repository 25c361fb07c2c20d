/*
Package auth defines the authentication and authorization seams of the
gateway.

Production deployments back these interfaces with the external
signature-verification and access-control services; all the gateway
consumes is the resulting owner UUID and role set. The built-in
StaticAuthenticator and OwnerAuthorizer cover small deployments and
tests: bearer tokens against a fixed account table, and owner-or-role
access decisions.
*/
package auth
