package database

import (
	"testing"

	"github.com/localnerve/casedocs/internal/config"
	"github.com/stretchr/testify/assert"
)

// The mysql driver defaults to reporting changed rows; the service reads
// RowsAffected == 0 as not-found, so the DSN must request matched-row counts
// or an unassign of an already-unassigned document reports a missing row.
func TestMysqlDSNRequestsFoundRows(t *testing.T) {
	dsn := mysqlDSN(&config.Config{
		DBUser:     "casedocs",
		DBPassword: "secret",
		DBHost:     "db",
		DBPort:     "3306",
		DBDatabase: "casedocs",
	})

	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "casedocs:secret@tcp(db:3306)/casedocs?")
	assert.Contains(t, dsn, "parseTime=True")
}
