// Package backend provides the blog API server.

// The entry points live under cmd/ (server, blogctl, seed, migrate). The API
// is organized into subpackages:

// - internal/handlers: HTTP request handlers and route registration
// - internal/models: Data models and database schemas
// - internal/dto: Response envelopes and request shapes
// - internal/auth: JWT authentication
// - internal/otp: TOTP provisioning and verification
// - internal/analytics: View dedup, interactions, CTR and impression flushing
// - internal/cache: Tag-invalidated response cache over Redis or memory
// - internal/search: Elasticsearch indexing and queries
// - internal/seed: Fake data generators
// - internal/storage: File storage (S3 or local disk)
// - internal/database: Database connection and migrations
// - internal/middleware: HTTP middleware (auth, API keys, rate limiting, tracing)

// See the individual package documentation for detailed API reference.
package backend
