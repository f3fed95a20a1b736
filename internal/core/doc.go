// Package core provides the file type model and the business logic around it.
//
// This package holds all domain logic independent of any UI or transport
// layer. It can be used by web handlers, the upload wizard, or tests without
// modification.
//
// # Architecture
//
//   - File types: [FileType] bundles claim MIME-type patterns, optionally
//     restrict storage schemes and carry custom [FieldDefinition]s.
//   - Registry: [Registry] persists file types. [MemoryRegistry] and
//     [PostgresRegistry] both seed the system "image" type.
//   - Resolution: [Resolver] turns a MIME type into candidate types and a
//     type into candidate schemes.
//   - Administration: [AdminService] implements create, update, enable,
//     disable, delete and field attachment, each gated by [Access].
//   - Files: [FileRepository] stores committed uploads.
//   - Audit: every successful mutation is written to an [AuditLog].
//
// # Matching
//
// MIME patterns are "type/subtype", "type/*" or "*/*". Matching is
// case-insensitive and ignores media type parameters:
//
//	core.MatchMIME("image/*", "IMAGE/PNG")         // true
//	core.MatchMIME("text/plain", "text/plain; charset=utf-8") // true
//
// # Errors
//
// Operations return [ErrNotFound], [ErrConflict], [ErrAccessDenied],
// [*ValidationError] or [*ConfigurationError], possibly wrapped. Use
// [MapError] to turn any of them into a [UserMessage] with a support code.
package core
