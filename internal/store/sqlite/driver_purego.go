//go:build !cgo_sqlite

package sqlite

// Default build: pure Go driver, no C toolchain needed.
//
//	CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by the import above
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
