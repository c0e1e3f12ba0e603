//go:build odbc

package database

import (
	_ "github.com/alexbrainman/odbc"
)

func init() {
	odbcAvailable = true
}
