package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"ctfarena/internal/models"
	"ctfarena/internal/repository"
)

// VerifyFlag reports whether candidate matches secret once surrounding
// whitespace is trimmed from the candidate. Both sides are hashed first so the
// comparison time depends on neither the content nor the length of the secret.
func VerifyFlag(secret, candidate string) bool {
	want := sha256.Sum256([]byte(secret))
	got := sha256.Sum256([]byte(strings.TrimSpace(candidate)))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// FlagVerifier checks candidates against stored challenge secrets.
type FlagVerifier struct {
	challenges repository.ChallengeRepository
}

func NewFlagVerifier(challenges repository.ChallengeRepository) *FlagVerifier {
	return &FlagVerifier{challenges: challenges}
}

// Verify loads the challenge and compares candidate against its flag. The
// challenge is returned so callers can credit points without a second read.
func (v *FlagVerifier) Verify(ctx context.Context, challengeID uint, candidate string) (*models.Challenge, bool, error) {
	if strings.TrimSpace(candidate) == "" {
		return nil, false, models.NewValidationError("Flag is required")
	}
	challenge, err := v.challenges.GetByID(ctx, challengeID, 0)
	if err != nil {
		return nil, false, err
	}
	if !challenge.IsLive() {
		return nil, false, models.NewNotAvailableError("challenge is not accepting flags")
	}
	return challenge, VerifyFlag(challenge.Flag, candidate), nil
}
