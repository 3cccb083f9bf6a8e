// Package dbmigrations exposes embedded SQL migrations for Kairós binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into Kairós binaries.
//
//go:embed *.sql
var Files embed.FS
