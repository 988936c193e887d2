// Package moderation is the backend core of a multi tenant content platform:
// token based authentication, role gating, moderation workflows, and the user
// to content relations that surround them.
//
// Tokens and claims:
//   - TokenService mints and validates stateless JWTs. Validation needs only
//     the signing key, so any replica can verify a token without shared state.
//   - JWTClaims travel explicitly. Handlers resolve claims once (from the
//     request or a context) and pass them to services as an argument, never
//     through hidden globals.
//
// Authorization:
//   - Guard checks claims against a RoleSet by plain set membership. AdminOnly,
//     Publishers, and Members are the built in sets; admin has no implicit
//     access to a set it is not named in.
//
// Moderation:
//   - ModerationRequest covers member submitted category and tag proposals,
//     Content covers creator submitted material. Both move through the same
//     generic Workflow, which owns the transition graph, terminal states,
//     hooks, and reviewer stamping. Approving a request materializes the
//     category or tag idempotently.
//
// Relations:
//   - RelationService manages bookmarks, read later entries, and content to
//     tag links. Adding an existing pair returns the existing link, so retries
//     are safe.
//
// Password recovery:
//   - GeneratePinHandler issues a single live 4 digit pin per email with a 15
//     minute expiry and mails it. VerifyPinHandler consumes the pin on first
//     use and answers every failure mode with the same ErrInvalidPin.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the services and
//     command handlers to describe logins, state changes, relation updates,
//     and pin events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking the request path.
package moderation
