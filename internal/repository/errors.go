// Package repository contains all database access for the marketplace.
// Repositories own the SQL; transaction boundaries belong to the services,
// which pass an open *sqlx.Tx into the Tx-suffixed methods.
package repository

import (
	"errors"

	"github.com/lib/pq"
)

// isPgUniqueViolation checks whether err is a PostgreSQL unique constraint
// violation for the given constraint name.
func isPgUniqueViolation(err error, constraintName string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == constraintName
}
