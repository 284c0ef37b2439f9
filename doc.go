// Package auth implements the credential lifecycle of an account: registration
// with an emailed verification code, login with cookie sessions, email
// verification and password reset.
//
// Service:
//   - Service exposes Register, Login, Logout, CheckAuth, VerifyEmail,
//     ForgetPassword and ResetPassword. Each returns a result value plus a list
//     of SideEffect values (set cookie, clear cookie, send email) that the
//     transport performs. The service never writes cookies or sends mail.
//   - Errors are *goerrors.Error values with a category and text code so the
//     HTTP layer maps them without string matching.
//
// Storage:
//   - AccountStore is implemented by BunAccountStore (sqlite, postgres),
//     MemoryAccountStore and repository.MongoAccountStore. Stores enforce
//     username and email uniqueness themselves, not only the service precheck.
//
// Sessions:
//   - TokenService signs HS256 JWTs carrying the account id. SessionGuard
//     resolves a token back into an account for protected routes and fails
//     closed with ErrNotAuthorized.
//
// Activity sinks:
//   - ActivitySink receives lifecycle events (registration, login, verification,
//     reset, mail failures). Sinks run best-effort; errors are logged.
package auth
