package main

import (
	"bytes"
	"errors"
	"testing"

	"ctfarena/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestReportImport(t *testing.T) {
	written := []models.Challenge{
		{ID: 11, Title: "Cookie Jar", Category: "web", Difficulty: "easy", Points: 100, Status: models.ChallengeStatusLive},
		{ID: 12, Title: "Padding Oracle", Category: "crypto", Difficulty: "hard", Points: 400, Status: models.ChallengeStatusLive},
	}

	tests := []struct {
		name    string
		created []models.Challenge
		err     error
		want    []string
		notWant string
	}{
		{
			name:    "complete",
			created: written,
			want:    []string{"Cookie Jar", "Padding Oracle", "Imported 2 challenges"},
			notWant: "before failing",
		},
		{
			name:    "partial",
			created: written,
			err:     errors.New("disk full"),
			want:    []string{"  11  Cookie Jar", "  12  Padding Oracle", "Imported 2 of 3 challenges before failing"},
		},
		{
			name:    "nothing written",
			err:     errors.New("disk full"),
			notWant: "Imported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			reportImport(&out, tt.created, 3, tt.err)
			for _, w := range tt.want {
				assert.Contains(t, out.String(), w)
			}
			if tt.notWant != "" {
				assert.NotContains(t, out.String(), tt.notWant)
			}
		})
	}
}
