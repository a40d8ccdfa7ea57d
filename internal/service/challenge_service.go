package service

import (
	"context"
	"fmt"
	"strings"

	"ctfarena/internal/cache"
	"ctfarena/internal/models"
	"ctfarena/internal/observability"
	"ctfarena/internal/repository"
	"ctfarena/internal/validation"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListChallengesInput filters the public catalogue.
type ListChallengesInput struct {
	Category   string
	Difficulty string
	Provenance string
	Query      string
	Page       int
	PerPage    int
	ViewerID   uint
}

// ChallengePage is one page of a challenge listing.
type ChallengePage struct {
	Challenges []models.Challenge `json:"challenges"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
}

// ChallengeService serves the catalogue and the staff tools that edit it.
type ChallengeService struct {
	challenges repository.ChallengeRepository
	gate       *ModerationGate
	rdb        *redis.Client
}

func NewChallengeService(challenges repository.ChallengeRepository, gate *ModerationGate, rdb *redis.Client) *ChallengeService {
	return &ChallengeService{challenges: challenges, gate: gate, rdb: rdb}
}

// Pagination clamps a 1-based page request into a repository window.
func Pagination(page, perPage int) (repository.Page, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}
	return repository.Page{Limit: perPage, Offset: (page - 1) * perPage}, page, perPage
}

// List returns live challenges matching the filters, newest first.
func (s *ChallengeService) List(ctx context.Context, in ListChallengesInput) (*ChallengePage, error) {
	filter, err := buildFilter(in)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter, in)
}

// AdminList includes hidden challenges.
func (s *ChallengeService) AdminList(ctx context.Context, actor models.Actor, in ListChallengesInput) ([]models.AdminChallenge, int64, error) {
	if err := s.gate.Authorize(ctx, actor, ActionEditChallenge); err != nil {
		return nil, 0, err
	}
	filter, err := buildFilter(in)
	if err != nil {
		return nil, 0, err
	}
	filter.IncludeHidden = true
	page, err := s.list(ctx, filter, in)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.AdminChallenge, 0, len(page.Challenges))
	for _, c := range page.Challenges {
		out = append(out, c.ToAdminView())
	}
	return out, page.Total, nil
}

func (s *ChallengeService) list(ctx context.Context, filter repository.ChallengeFilter, in ListChallengesInput) (*ChallengePage, error) {
	window, page, perPage := Pagination(in.Page, in.PerPage)
	items, total, err := s.challenges.List(ctx, filter, window, in.ViewerID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Challenge{}
	}
	return &ChallengePage{Challenges: items, Total: total, Page: page, PerPage: perPage}, nil
}

func buildFilter(in ListChallengesInput) (repository.ChallengeFilter, error) {
	filter := repository.ChallengeFilter{
		Category:   strings.ToLower(strings.TrimSpace(in.Category)),
		Difficulty: strings.ToLower(strings.TrimSpace(in.Difficulty)),
		Provenance: models.Provenance(strings.ToLower(strings.TrimSpace(in.Provenance))),
		Query:      in.Query,
	}
	if filter.Category != "" && !oneOf(validation.Categories, filter.Category) {
		return filter, models.NewValidationError("unknown category")
	}
	if filter.Difficulty != "" && !oneOf(validation.Difficulties, filter.Difficulty) {
		return filter, models.NewValidationError("unknown difficulty")
	}
	switch filter.Provenance {
	case "", models.ProvenanceOfficial, models.ProvenanceCommunity:
	default:
		return filter, models.NewValidationError("unknown provenance")
	}
	return filter, nil
}

// Get returns a live challenge. Hidden challenges read as missing to participants.
// Anonymous reads are cached briefly since they carry no per-viewer state.
func (s *ChallengeService) Get(ctx context.Context, id, viewerID uint) (*models.Challenge, error) {
	var challenge models.Challenge
	load := func() error {
		c, err := s.challenges.GetByID(ctx, id, viewerID)
		if err != nil {
			return err
		}
		challenge = *c
		return nil
	}

	var err error
	if viewerID == 0 {
		_, err = cache.Aside(ctx, s.rdb, cache.ChallengeKey(id), &challenge, cache.ChallengeTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, err
	}
	if !challenge.IsLive() {
		return nil, models.NewNotFoundError("Challenge", id)
	}
	return &challenge, nil
}

// AdminGet returns any non-deleted challenge with its flag.
func (s *ChallengeService) AdminGet(ctx context.Context, actor models.Actor, id uint) (*models.AdminChallenge, error) {
	if err := s.gate.Authorize(ctx, actor, ActionEditChallenge); err != nil {
		return nil, err
	}
	challenge, err := s.challenges.GetByID(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	view := challenge.ToAdminView()
	return &view, nil
}

// Create adds an official challenge. hidden keeps it out of the catalogue until released.
func (s *ChallengeService) Create(ctx context.Context, actor models.Actor, fields validation.ChallengeFields, hidden bool) (*models.Challenge, error) {
	if err := s.gate.Authorize(ctx, actor, ActionCreateChallenge); err != nil {
		return nil, err
	}
	challenge, err := officialChallenge(fields, hidden)
	if err != nil {
		return nil, err
	}
	if err := s.challenges.Create(ctx, challenge); err != nil {
		return nil, err
	}
	s.gate.Record(ctx, actor, ActionCreateChallenge, map[string]interface{}{"challenge_id": challenge.ID})
	return challenge, nil
}

// Import creates every challenge in a pack. Nothing is written unless every
// entry validates.
func (s *ChallengeService) Import(ctx context.Context, actor models.Actor, pack []validation.ChallengeFields, hidden bool) ([]models.Challenge, error) {
	if err := s.gate.Authorize(ctx, actor, ActionCreateChallenge); err != nil {
		return nil, err
	}
	if len(pack) == 0 {
		return nil, models.NewValidationError("challenge pack is empty")
	}

	prepared := make([]*models.Challenge, 0, len(pack))
	for i, fields := range pack {
		challenge, err := officialChallenge(fields, hidden)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		prepared = append(prepared, challenge)
	}

	out := make([]models.Challenge, 0, len(prepared))
	for _, challenge := range prepared {
		if err := s.challenges.Create(ctx, challenge); err != nil {
			return out, err
		}
		out = append(out, *challenge)
	}
	s.gate.Record(ctx, actor, ActionCreateChallenge, map[string]interface{}{"imported": len(out)})
	return out, nil
}

func officialChallenge(fields validation.ChallengeFields, hidden bool) (*models.Challenge, error) {
	fields = fields.Normalize()
	if errs := validation.ValidateChallenge(fields); errs != nil {
		return nil, models.NewFieldValidationError(errs)
	}
	status := models.ChallengeStatusLive
	if hidden {
		status = models.ChallengeStatusHidden
	}
	return &models.Challenge{
		Title:       fields.Title,
		Description: fields.Description,
		Category:    fields.Category,
		Difficulty:  fields.Difficulty,
		Points:      fields.Points,
		Flag:        fields.Flag,
		FileRef:     fields.FileRef,
		Provenance:  models.ProvenanceOfficial,
		Status:      status,
	}, nil
}

// Update rewrites the descriptive fields. Provenance and author never change.
func (s *ChallengeService) Update(ctx context.Context, actor models.Actor, id uint, fields validation.ChallengeFields) (*models.Challenge, error) {
	if err := s.gate.Authorize(ctx, actor, ActionEditChallenge); err != nil {
		return nil, err
	}
	challenge, err := s.challenges.GetByID(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	fields = fields.Normalize()
	if errs := validation.ValidateChallenge(fields); errs != nil {
		return nil, models.NewFieldValidationError(errs)
	}

	pointsChanged := challenge.Points != fields.Points
	challenge.Title = fields.Title
	challenge.Description = fields.Description
	challenge.Category = fields.Category
	challenge.Difficulty = fields.Difficulty
	challenge.Points = fields.Points
	challenge.Flag = fields.Flag
	challenge.FileRef = fields.FileRef
	if err := s.challenges.Update(ctx, challenge); err != nil {
		return nil, err
	}
	s.gate.Record(ctx, actor, ActionEditChallenge, map[string]interface{}{"challenge_id": id})

	cache.InvalidateChallenge(ctx, s.rdb, id)
	if pointsChanged {
		s.invalidateScores(ctx)
	}
	return challenge, nil
}

// SetHidden withdraws or releases a challenge. Existing solves keep counting.
func (s *ChallengeService) SetHidden(ctx context.Context, actor models.Actor, id uint, hidden bool) error {
	if err := s.gate.Authorize(ctx, actor, ActionEditChallenge); err != nil {
		return err
	}
	status := models.ChallengeStatusLive
	if hidden {
		status = models.ChallengeStatusHidden
	}
	if err := s.challenges.SetStatus(ctx, id, status); err != nil {
		return err
	}
	s.gate.Record(ctx, actor, ActionEditChallenge, map[string]interface{}{"challenge_id": id, "status": status})
	cache.InvalidateChallenge(ctx, s.rdb, id)
	return nil
}

// Delete soft-deletes a challenge; its solves stop counting toward scores.
func (s *ChallengeService) Delete(ctx context.Context, actor models.Actor, id uint) error {
	if err := s.gate.Authorize(ctx, actor, ActionDeleteChallenge); err != nil {
		return err
	}
	if err := s.challenges.Delete(ctx, id); err != nil {
		return err
	}
	s.gate.Record(ctx, actor, ActionDeleteChallenge, map[string]interface{}{"challenge_id": id})
	cache.InvalidateChallenge(ctx, s.rdb, id)
	s.invalidateScores(ctx)
	return nil
}

func (s *ChallengeService) invalidateScores(ctx context.Context) {
	if err := cache.InvalidateLeaderboard(ctx, s.rdb); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "leaderboard invalidation failed", "error", err)
	}
}

func oneOf(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
