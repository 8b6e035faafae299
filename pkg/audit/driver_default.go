//go:build !sqlite_cgo

package audit

import (
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// driverName selects the registered SQLite driver. The default build uses
// the cgo-free modernc driver; build with -tags sqlite_cgo for mattn's
// cgo driver.
const driverName = "sqlite"
