package repository

import "errors"

// ErrNoRowsAffected is returned by updates that must touch exactly one row.
var ErrNoRowsAffected = errors.New("no rows affected")

type scanner interface {
	Scan(dest ...any) error
}
