package seed

import (
	"errors"

	"ctfarena/internal/models"

	"gorm.io/gorm"
)

// Warmup is a permanent official challenge present on every fresh board.
type Warmup struct {
	Title       string
	Description string
	Category    string
	Points      int
	Flag        string
}

// BuiltInWarmups defines the starter challenges.
var BuiltInWarmups = []Warmup{
	{Title: "Sanity Check", Description: "The flag is flag{welcome_to_ctfarena}.", Category: models.CategoryMisc, Points: 10, Flag: "flag{welcome_to_ctfarena}"},
	{Title: "View Source", Description: "Some secrets are only hidden from people who do not look.", Category: models.CategoryWeb, Points: 50, Flag: "flag{ctrl_u_is_a_superpower}"},
	{Title: "Caesar Salad", Description: "synt{ebgngr_guvegrra}", Category: models.CategoryCrypto, Points: 50, Flag: "flag{rotate_thirteen}"},
}

// Warmups inserts any built-in warm-up challenge missing from the board.
// Existing rows, including ones staff edited, are left alone.
func Warmups(db *gorm.DB) error {
	for _, item := range BuiltInWarmups {
		err := db.Transaction(func(tx *gorm.DB) error {
			var existing models.Challenge
			err := tx.Unscoped().
				Where("title = ? AND provenance = ?", item.Title, models.ProvenanceOfficial).
				First(&existing).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return tx.Create(&models.Challenge{
				Title:       item.Title,
				Description: item.Description,
				Category:    item.Category,
				Difficulty:  models.DifficultyEasy,
				Points:      item.Points,
				Flag:        item.Flag,
				Provenance:  models.ProvenanceOfficial,
				Status:      models.ChallengeStatusLive,
			}).Error
		})
		if err != nil {
			return err
		}
	}
	return nil
}
