// Package migrations creates the documents table and the SQL functions the
// filter compiler relies on.
package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

var options = &gormigrate.Options{
	TableName:      "docquery_migrations",
	IDColumnName:   "id",
	IDColumnSize:   255,
	UseTransaction: true,
}

// Migrations returns all database migrations in order.
func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createDocumentsTable(),
		addDocumentFunctions(),
	}
}

// Run executes all pending migrations.
func Run(db *gorm.DB) error {
	return gormigrate.New(db, options, Migrations()).Migrate()
}

