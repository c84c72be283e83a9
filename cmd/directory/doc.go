// Package directory defines the account model and the persistence boundary
// for the Lerniqo account directory. Two adapters implement the Directory
// contract: a Postgres store (pgx) and an in-memory store used for tests
// and database-less development.
package directory
