// Package db carries the canonical SQL schema so binaries can bootstrap
// self-contained databases.
package db

import _ "embed"

//go:embed schema.sql
var Schema string
