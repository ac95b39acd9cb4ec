package source

import _ "embed"

// Schema creates the tables the Postgres providers read. It is idempotent.
//
//go:embed schema.sql
var Schema string
