package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validFields() ChallengeFields {
	return ChallengeFields{
		Title:       "Baby RSA",
		Description: "e is tiny",
		Category:    "crypto",
		Difficulty:  "easy",
		Points:      100,
		Flag:        "flag{cube}",
	}
}

func TestValidateChallenge(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*ChallengeFields)
		fields []string
	}{
		{"Valid", func(*ChallengeFields) {}, nil},
		{"Zero Points", func(f *ChallengeFields) { f.Points = 0 }, []string{"points"}},
		{"Negative Points", func(f *ChallengeFields) { f.Points = -5 }, []string{"points"}},
		{"Too Many Points", func(f *ChallengeFields) { f.Points = MaxPoints + 1 }, []string{"points"}},
		{"Unknown Category", func(f *ChallengeFields) { f.Category = "trivia" }, []string{"category"}},
		{"Unknown Difficulty", func(f *ChallengeFields) { f.Difficulty = "insane" }, []string{"difficulty"}},
		{"Long Title", func(f *ChallengeFields) { f.Title = strings.Repeat("t", MaxTitleLength+1) }, []string{"title"}},
		{
			"Everything Missing",
			func(f *ChallengeFields) { *f = ChallengeFields{} },
			[]string{"category", "description", "difficulty", "flag", "points", "title"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)
			errs := ValidateChallenge(f.Normalize())
			if tt.fields == nil {
				assert.Nil(t, errs)
				return
			}
			assert.Equal(t, tt.fields, FieldNames(errs))
		})
	}
}

func TestChallengeFields_Normalize(t *testing.T) {
	t.Parallel()
	f := ChallengeFields{
		Title:       "  Heap  ",
		Description: "\tdesc\n",
		Category:    " PWN ",
		Difficulty:  "Hard",
		Points:      300,
		Flag:        "  flag{Case_Kept}  ",
	}.Normalize()

	assert.Equal(t, "Heap", f.Title)
	assert.Equal(t, "desc", f.Description)
	assert.Equal(t, "pwn", f.Category)
	assert.Equal(t, "hard", f.Difficulty)
	assert.Equal(t, "flag{Case_Kept}", f.Flag)
	assert.Nil(t, ValidateChallenge(f))

	blank := ChallengeFields{Title: "   ", Description: "x", Category: "web", Difficulty: "easy", Points: 1, Flag: "   "}.Normalize()
	assert.Equal(t, []string{"flag", "title"}, FieldNames(ValidateChallenge(blank)))
}
