package service

import (
	"context"
	"time"

	"ctfarena/internal/featureflags"
	"ctfarena/internal/models"
	"ctfarena/internal/notifications"
	"ctfarena/internal/observability"
	"ctfarena/internal/repository"
	"ctfarena/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// MaxReviewNotesLength bounds reviewer notes.
const MaxReviewNotesLength = 2000

// ReviewService runs the community submission workflow: members propose
// challenges, admins approve or reject each proposal exactly once.
type ReviewService struct {
	submissions repository.SubmissionRepository
	challenges  repository.ChallengeRepository
	gate        *ModerationGate
	publisher   EventPublisher
	flags       *featureflags.Manager
	now         func() time.Time
}

func NewReviewService(
	submissions repository.SubmissionRepository,
	challenges repository.ChallengeRepository,
	gate *ModerationGate,
	publisher EventPublisher,
	flags *featureflags.Manager,
) *ReviewService {
	return &ReviewService{
		submissions: submissions,
		challenges:  challenges,
		gate:        gate,
		publisher:   publisher,
		flags:       flags,
		now:         time.Now,
	}
}

// Submit files a new pending proposal authored by actor.
func (s *ReviewService) Submit(ctx context.Context, actor models.Actor, fields validation.ChallengeFields) (*models.Submission, error) {
	if !s.flags.Enabled(featureflags.CommunitySubmissions, actor.UserID) {
		return nil, models.NewNotAvailableError("community submissions are closed")
	}
	fields = fields.Normalize()
	if errs := validation.ValidateChallenge(fields); errs != nil {
		return nil, models.NewFieldValidationError(errs)
	}

	sub := &models.Submission{
		Title:       fields.Title,
		Description: fields.Description,
		Category:    fields.Category,
		Difficulty:  fields.Difficulty,
		Points:      fields.Points,
		Flag:        fields.Flag,
		FileRef:     fields.FileRef,
		AuthorID:    actor.UserID,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// MySubmissions lists the actor's own proposals, newest first.
func (s *ReviewService) MySubmissions(ctx context.Context, actor models.Actor) ([]models.Submission, error) {
	return s.submissions.ListByAuthor(ctx, actor.UserID)
}

// Queue lists proposals for review with the flag visible and the IDs of
// existing challenges that look like duplicates.
func (s *ReviewService) Queue(ctx context.Context, actor models.Actor, status models.SubmissionStatus, page repository.Page) ([]models.ReviewQueueItem, error) {
	if err := s.gate.Authorize(ctx, actor, ActionViewReviewQueue); err != nil {
		return nil, err
	}
	switch status {
	case "", models.SubmissionStatusPending, models.SubmissionStatusApproved, models.SubmissionStatusRejected:
	default:
		return nil, models.NewValidationError("unknown submission status")
	}

	subs, err := s.submissions.ListByStatus(ctx, status, page)
	if err != nil {
		return nil, err
	}
	items := make([]models.ReviewQueueItem, 0, len(subs))
	for _, sub := range subs {
		item := models.ReviewQueueItem{Submission: sub, Flag: sub.Flag}
		if sub.Status == models.SubmissionStatusPending {
			similar, err := s.challenges.FindSimilar(ctx, sub.Title, sub.Flag)
			if err != nil {
				return nil, err
			}
			item.SimilarChallenges = similar
		}
		items = append(items, item)
	}
	return items, nil
}

// Approve materializes the proposal as a live community challenge.
func (s *ReviewService) Approve(ctx context.Context, actor models.Actor, submissionID uint, notes string) (*models.Submission, *models.Challenge, error) {
	span, ctx := observability.NewSpan(ctx, "submission.approve")
	defer span.End()
	span.AddAttributes(observability.ActorAttrs(actor.UserID, string(actor.Role))...)
	span.AddAttributes(attribute.Int64("submission.id", int64(submissionID)))

	if err := s.gate.Authorize(ctx, actor, ActionApproveSubmission); err != nil {
		span.SetError(err)
		return nil, nil, err
	}
	if len(notes) > MaxReviewNotesLength {
		return nil, nil, models.NewValidationError("Review notes too long (max 2000 characters)")
	}

	sub, challenge, err := s.submissions.Approve(ctx, submissionID, s.decision(actor, notes))
	if err != nil {
		span.SetError(err)
		s.countDecision(err, "approve_refused")
		return nil, nil, err
	}
	observability.ReviewDecisions.WithLabelValues(string(models.SubmissionStatusApproved)).Inc()
	s.gate.Record(ctx, actor, ActionApproveSubmission, map[string]interface{}{
		"submission_id": sub.ID,
		"challenge_id":  challenge.ID,
	})
	s.announce(ctx, sub)
	return sub, challenge, nil
}

// Reject closes the proposal without creating anything.
func (s *ReviewService) Reject(ctx context.Context, actor models.Actor, submissionID uint, notes string) (*models.Submission, error) {
	span, ctx := observability.NewSpan(ctx, "submission.reject")
	defer span.End()
	span.AddAttributes(observability.ActorAttrs(actor.UserID, string(actor.Role))...)
	span.AddAttributes(attribute.Int64("submission.id", int64(submissionID)))

	if err := s.gate.Authorize(ctx, actor, ActionRejectSubmission); err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(notes) > MaxReviewNotesLength {
		return nil, models.NewValidationError("Review notes too long (max 2000 characters)")
	}

	sub, err := s.submissions.Reject(ctx, submissionID, s.decision(actor, notes))
	if err != nil {
		span.SetError(err)
		s.countDecision(err, "reject_refused")
		return nil, err
	}
	observability.ReviewDecisions.WithLabelValues(string(models.SubmissionStatusRejected)).Inc()
	s.gate.Record(ctx, actor, ActionRejectSubmission, map[string]interface{}{"submission_id": sub.ID})
	s.announce(ctx, sub)
	return sub, nil
}

func (s *ReviewService) decision(actor models.Actor, notes string) repository.ReviewDecision {
	return repository.ReviewDecision{ReviewerID: actor.UserID, Notes: notes, At: s.now().UTC()}
}

func (s *ReviewService) countDecision(err error, outcome string) {
	if models.HasCode(err, models.CodeInvalidTransition) {
		observability.ReviewDecisions.WithLabelValues(outcome).Inc()
	}
}

func (s *ReviewService) announce(ctx context.Context, sub *models.Submission) {
	if s.publisher == nil {
		return
	}
	event := notifications.ReviewEvent{
		SubmissionID: sub.ID,
		AuthorID:     sub.AuthorID,
		Status:       string(sub.Status),
		ChallengeID:  sub.ChallengeID,
	}
	publishAsync(ctx, "publish_review", map[string]interface{}{"submission_id": sub.ID}, func(bg context.Context) error {
		return s.publisher.PublishReview(bg, event)
	})
}
