// Package auth verifies bearer credentials and resolves them to identities.
//
// The relay consumes authentication as a capability: a credential goes in, a
// stable Identity (id, display name, role) comes out. Token issuance lives
// outside this server; the Generate helper exists only for the development
// token CLI subcommand.
//
// # Verification
//
//	verifier := auth.NewJWTVerifier(secret)
//	identity, err := verifier.Verify(tokenString)
//
// Tokens are HS256 JWTs. The "sub" claim is the identity id and is required;
// "name" and "role" are carried through when present.
//
// # HTTP integration
//
// Middleware wraps REST handlers and rejects unauthenticated requests with
// 401 before any relay state is touched. ExtractToken accepts either an
// Authorization header or a "token" query parameter, since browser WebSocket
// clients cannot set headers on the upgrade request.
package auth
