// Package warehouse implements the backend for the warehouse inventory
// service: account signup/login with JWT access and refresh tokens, a
// redis-backed token blocklist, role gated item/note/tag management, and
// signed action tokens for the email verification and password reset flows.
//
// Token model:
//   - Access and refresh tokens are HS256 JWTs carrying an embedded user
//     summary, a unique token id (jti), and a refresh flag. Refresh tokens
//     never carry a role claim.
//   - Logging out blocklists the access token's jti for the remainder of its
//     validity window; the blocklist is consulted on every gated request.
//   - Email verification and password reset links use a separate signed
//     codec with a salted key derivation, so an action token can never be
//     presented as an API credential.
//
// Services are plain structs wired once at process start (see cmd/server);
// there is no package level mutable state.
package warehouse
