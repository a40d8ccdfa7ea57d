package database

import "ctfarena/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters for AutoMigrate: referenced tables come first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Challenge{},
		&models.Solve{},
		&models.FlagAttempt{},
		&models.Submission{},
		&models.Post{},
		&models.Comment{},
		&models.Upvote{},
	}
}
