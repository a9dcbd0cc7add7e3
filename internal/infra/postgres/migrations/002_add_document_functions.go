package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// addDocumentFunctions creates the helpers used by compiled filters.
//
// doc_values(v) yields v itself, or each element when v is an array, and
// nothing for SQL NULL. Scalar predicates run over it so that a filter on
// a field also matches any element of an array stored there.
//
// doc_timestamptz(s) parses s as a timestamp and yields NULL instead of
// failing on text that is not one.
func addDocumentFunctions() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "002_add_document_functions",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`
				CREATE OR REPLACE FUNCTION doc_values(v jsonb)
				RETURNS SETOF jsonb AS $$
					SELECT e FROM jsonb_array_elements(CASE WHEN jsonb_typeof(v) = 'array' THEN v ELSE '[]'::jsonb END) AS e
					UNION ALL
					SELECT v WHERE v IS NOT NULL AND jsonb_typeof(v) <> 'array'
				$$ LANGUAGE sql IMMUTABLE
			`).Error; err != nil {
				return err
			}

			return tx.Exec(`
				CREATE OR REPLACE FUNCTION doc_timestamptz(s text)
				RETURNS timestamptz AS $$
				BEGIN
					RETURN s::timestamptz;
				EXCEPTION WHEN others THEN
					RETURN NULL;
				END
				$$ LANGUAGE plpgsql STABLE
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			_ = tx.Exec(`DROP FUNCTION IF EXISTS doc_timestamptz(text)`).Error
			_ = tx.Exec(`DROP FUNCTION IF EXISTS doc_values(jsonb)`).Error
			return nil
		},
	}
}
