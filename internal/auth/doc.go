// Package auth verifies bearer tokens for the HTTP surface.
//
// Tokens are JWTs signed with HS256 (shared secret) or RS256 (PEM public
// key). Every token carries a subject, a role list and a scope list:
//
//	viewer      read, telemetry
//	controller  read, control, telemetry
//
// A viewer may only run read-only instrument operations. A controller may
// run all of them.
package auth
