package database

import _ "embed"

// Schema is the cache schema produced by applying every migration. Tests use
// it to set up a database without running golang-migrate.
//
//go:embed schema.sql
var Schema string
