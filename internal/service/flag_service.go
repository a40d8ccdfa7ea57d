package service

import (
	"context"
	"time"

	"ctfarena/internal/featureflags"
	"ctfarena/internal/models"
	"ctfarena/internal/notifications"
	"ctfarena/internal/observability"
	"ctfarena/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// SubmitFlagInput is one participant's flag attempt.
type SubmitFlagInput struct {
	UserID      uint
	Username    string
	ChallengeID uint
	Flag        string
	IPAddress   string
}

// SubmitFlagResult tells the participant how the attempt went.
type SubmitFlagResult struct {
	Result      models.FlagResult `json:"result"`
	Correct     bool              `json:"correct"`
	Points      int               `json:"points"`
	FirstBlood  bool              `json:"first_blood"`
	ChallengeID uint              `json:"challenge_id"`
	SolvedAt    *time.Time        `json:"solved_at,omitempty"`
}

// FlagService ties verification to the ledger and the live feed.
type FlagService struct {
	verifier  *FlagVerifier
	ledger    *SolveLedger
	solves    repository.SolveRepository
	publisher EventPublisher
	flags     *featureflags.Manager
}

func NewFlagService(
	verifier *FlagVerifier,
	ledger *SolveLedger,
	solves repository.SolveRepository,
	publisher EventPublisher,
	flags *featureflags.Manager,
) *FlagService {
	return &FlagService{
		verifier:  verifier,
		ledger:    ledger,
		solves:    solves,
		publisher: publisher,
		flags:     flags,
	}
}

// Submit verifies the flag and credits a correct one. Every attempt that reaches
// a live challenge is written to the attempt log, right or wrong.
func (s *FlagService) Submit(ctx context.Context, in SubmitFlagInput) (*SubmitFlagResult, error) {
	span, ctx := observability.NewSpan(ctx, "flag.submit")
	defer span.End()
	span.AddAttributes(
		attribute.Int64("user.id", int64(in.UserID)),
		attribute.Int64("challenge.id", int64(in.ChallengeID)),
	)

	challenge, ok, err := s.verifier.Verify(ctx, in.ChallengeID, in.Flag)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	out := &SubmitFlagResult{ChallengeID: challenge.ID, Result: models.FlagResultIncorrect}
	if ok {
		result, solve, err := s.ledger.RecordSolve(ctx, in.UserID, challenge.ID)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		out.Correct = true
		out.SolvedAt = &solve.SolvedAt
		if result == models.Credited {
			out.Result = models.FlagResultCorrect
			out.Points = challenge.Points
			out.FirstBlood = s.firstBlood(ctx, solve)
			s.announce(ctx, in, challenge, solve, out.FirstBlood)
		} else {
			out.Result = models.FlagResultDuplicate
		}
	}

	observability.FlagSubmissions.WithLabelValues(string(out.Result)).Inc()
	attempt := &models.FlagAttempt{
		UserID:      in.UserID,
		ChallengeID: challenge.ID,
		Result:      out.Result,
		IPAddress:   in.IPAddress,
	}
	if err := s.solves.RecordAttempt(ctx, attempt); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "flag attempt not recorded", "error", err, "challenge_id", challenge.ID)
	}
	return out, nil
}

func (s *FlagService) firstBlood(ctx context.Context, solve *models.Solve) bool {
	if !s.flags.Enabled(featureflags.FirstBlood, solve.UserID) {
		return false
	}
	first, err := s.solves.IsFirst(ctx, solve)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "first blood lookup failed", "error", err, "challenge_id", solve.ChallengeID)
		return false
	}
	return first
}

func (s *FlagService) announce(ctx context.Context, in SubmitFlagInput, challenge *models.Challenge, solve *models.Solve, firstBlood bool) {
	if s.publisher == nil {
		return
	}
	event := notifications.SolveEvent{
		UserID:         in.UserID,
		Username:       in.Username,
		ChallengeID:    challenge.ID,
		ChallengeTitle: challenge.Title,
		Points:         challenge.Points,
		FirstBlood:     firstBlood,
		SolvedAt:       solve.SolvedAt,
	}
	publishAsync(ctx, "publish_solve", map[string]interface{}{"challenge_id": challenge.ID}, func(bg context.Context) error {
		return s.publisher.PublishSolve(bg, event)
	})
}
