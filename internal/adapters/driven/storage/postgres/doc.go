// Package postgres implements the driven store ports on PostgreSQL via
// lib/pq, for deployments where several harvesters share one database.
//
// The schema is embedded from schema.sql and applied idempotently by
// InitSchema. It mirrors the SQLite layout with native DATE, TIMESTAMPTZ
// and JSONB columns.
package postgres
