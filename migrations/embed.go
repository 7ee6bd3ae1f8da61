// Package migrations bundles the SQL schema so binaries and tests do not
// depend on the working directory.
package migrations

import "embed"

// FS holds every numbered migration file
//
//go:embed *.sql
var FS embed.FS
