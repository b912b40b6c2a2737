// Package database provides connection management, versioned migrations,
// configuration types, the key/value Logger, query hooks for auditing and
// slow query detection, health checks, and SQL error classification, all
// built on top of Bun.
package database
