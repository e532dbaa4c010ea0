// Package models contains the GORM persistence models for the local store.
// Column layout is owned by the SQL deltas in the migration package; these
// structs only map rows to domain values.
//
// Timestamps are stored as TEXT in shared.TimestampLayout and money as
// exact decimal TEXT (at least two places, never rounded).
package models
