//go:build !cgo_sqlite

package main

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// dsnOptions enables WAL and a busy timeout with modernc's pragma parameters.
const dsnOptions = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

func initDB(path string) (*sql.DB, error) {
	return sql.Open("sqlite", withOptions(path, dsnOptions))
}
