package sql

import _ "embed"

// Schema creates the tasks table and its indexes. It is safe to run twice.
//
//go:embed schema.sql
var Schema string
