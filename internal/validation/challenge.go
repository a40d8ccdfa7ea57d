package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"ctfarena/internal/models"
)

// Limits on challenge content.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 20000
	MaxFlagLength        = 255
	MaxFileRefLength     = 512
	MaxPoints            = 10000
)

var (
	// Categories is the fixed set a challenge may belong to.
	Categories = []string{
		models.CategoryWeb, models.CategoryCrypto, models.CategoryPwn, models.CategoryReverse,
		models.CategoryForensics, models.CategoryOSINT, models.CategoryMisc,
	}
	// Difficulties is the fixed set of difficulty labels.
	Difficulties = []string{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}
)

// ChallengeFields is the descriptive part shared by submissions and challenges.
type ChallengeFields struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Category    string `json:"category" yaml:"category"`
	Difficulty  string `json:"difficulty" yaml:"difficulty"`
	Points      int    `json:"points" yaml:"points"`
	Flag        string `json:"flag" yaml:"flag"`
	FileRef     string `json:"file_ref,omitempty" yaml:"file_ref"`
}

// Normalize trims surrounding whitespace and lower-cases the enum fields.
// The flag is trimmed so a stored secret always matches a trimmed candidate.
func (f ChallengeFields) Normalize() ChallengeFields {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	f.Difficulty = strings.ToLower(strings.TrimSpace(f.Difficulty))
	f.Flag = strings.TrimSpace(f.Flag)
	f.FileRef = strings.TrimSpace(f.FileRef)
	return f
}

// ValidateChallenge returns one message per violated field, or nil.
// Call it on normalized fields.
func ValidateChallenge(f ChallengeFields) map[string]string {
	errs := make(map[string]string)

	switch {
	case f.Title == "":
		errs["title"] = "title is required"
	case utf8.RuneCountInString(f.Title) > MaxTitleLength:
		errs["title"] = fmt.Sprintf("title must not exceed %d characters", MaxTitleLength)
	}

	switch {
	case f.Description == "":
		errs["description"] = "description is required"
	case utf8.RuneCountInString(f.Description) > MaxDescriptionLength:
		errs["description"] = fmt.Sprintf("description must not exceed %d characters", MaxDescriptionLength)
	}

	if !contains(Categories, f.Category) {
		errs["category"] = "category must be one of " + strings.Join(Categories, ", ")
	}
	if !contains(Difficulties, f.Difficulty) {
		errs["difficulty"] = "difficulty must be one of " + strings.Join(Difficulties, ", ")
	}

	switch {
	case f.Points <= 0:
		errs["points"] = "points must be a positive integer"
	case f.Points > MaxPoints:
		errs["points"] = fmt.Sprintf("points must not exceed %d", MaxPoints)
	}

	switch {
	case f.Flag == "":
		errs["flag"] = "flag is required"
	case len(f.Flag) > MaxFlagLength:
		errs["flag"] = fmt.Sprintf("flag must not exceed %d bytes", MaxFlagLength)
	}

	if len(f.FileRef) > MaxFileRefLength {
		errs["file_ref"] = fmt.Sprintf("file reference must not exceed %d characters", MaxFileRefLength)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// FieldNames returns the sorted keys of a field error map.
func FieldNames(errs map[string]string) []string {
	names := make([]string, 0, len(errs))
	for k := range errs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
