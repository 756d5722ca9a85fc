// Package auth implements dual-scheme bearer authentication for feedgate.
//
// Two credential kinds share the Authorization header:
//
//   - Opaque access tokens, prefixed "MCP-". Only the SHA-256 digest of the
//     secret is stored; verification looks the record up by digest, checks
//     expiry, and best-effort stamps last_used_at.
//   - Session JWTs issued by the external account subsystem, verified with
//     HS256 across a small set of accepted audience variants.
//
// The Resolver picks the scheme from the secret prefix; handlers receive the
// resulting Identity via WithIdentity/FromContext.
package auth
