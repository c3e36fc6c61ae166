// Package migrations holds the versioned MySQL schema, applied with golang-migrate.
package migrations

import "embed"

// FS contains the NNNNNN_name.{up,down}.sql migration files
//
//go:embed *.sql
var FS embed.FS
