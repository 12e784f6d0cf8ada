package store

import "gorm.io/gorm"

// Migrate creates the tables and indexes. Safe to run on every start.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&sessionRecord{}, &answerRecord{}, &analyticsRecord{}); err != nil {
		return err
	}
	return AddIndexes(db)
}

// AddIndexes adds the lookup indexes and the one-active-aggregate-per-form
// constraint. Both Postgres and SQLite accept partial indexes.
func AddIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_fields_form_state ON form_response_fields (form_id, state)",
		"CREATE INDEX IF NOT EXISTS idx_fields_created_at ON form_response_fields (created_at)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_analytics_active_form ON form_analytics (form_id) WHERE status = 'active'",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
