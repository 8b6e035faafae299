//go:build sqlite_cgo

package audit

import (
	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver
)

const driverName = "sqlite3"
