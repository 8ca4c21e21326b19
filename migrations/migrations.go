// Package migrations holds the run store schema as plain SQL files. Each
// driver has its own directory because sqlite and postgres differ in column
// types and timestamp handling; files apply in name order.
package migrations

import "embed"

// SqliteMigrations is read by the sqlite3 driver.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

// PostgresMigrations is read by the postgres driver.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
