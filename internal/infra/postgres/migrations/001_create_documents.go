package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// createDocumentsTable creates the shared documents table with its indexes.
func createDocumentsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "001_create_documents",
		Migrate: func(tx *gorm.DB) error {
			err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS documents (
					id UUID PRIMARY KEY,
					collection VARCHAR(100) NOT NULL,
					data JSONB NOT NULL,
					seq BIGSERIAL NOT NULL,

					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
			`).Error
			if err != nil {
				return err
			}

			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, seq);",
				"CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING GIN (data jsonb_path_ops);",
			}

			for _, idx := range indexes {
				if err := tx.Exec(idx).Error; err != nil {
					return err
				}
			}

			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS documents;").Error
		},
	}
}
