//go:build cgo_sqlite

package main

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// dsnOptions enables WAL and a busy timeout with the mattn driver's parameters.
const dsnOptions = "_journal_mode=WAL&_busy_timeout=5000"

func initDB(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", withOptions(path, dsnOptions))
}
