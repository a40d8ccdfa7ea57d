package service

import (
	"context"
	"strings"
	"time"

	"ctfarena/internal/cache"
	"ctfarena/internal/middleware"
	"ctfarena/internal/models"
	"ctfarena/internal/repository"
	"ctfarena/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// AccessTokenTTL is how long an issued access token stays valid.
const AccessTokenTTL = 24 * time.Hour

type UserService struct {
	userRepo  repository.UserRepository
	gate      *ModerationGate
	rdb       *redis.Client
	jwtSecret string
	now       func() time.Time
}

type SignupInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	// Identifier is an email address or a username.
	Identifier string
	Password   string
}

type UpdateProfileInput struct {
	UserID          uint
	Username        string
	Email           string
	CurrentPassword string
	NewPassword     string
}

// AuthResult is returned on signup and login.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func NewUserService(userRepo repository.UserRepository, gate *ModerationGate, rdb *redis.Client, jwtSecret string) *UserService {
	return &UserService{
		userRepo:  userRepo,
		gate:      gate,
		rdb:       rdb,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := validation.NormalizeEmail(in.Email)

	fields := map[string]string{}
	if err := validation.ValidateUsername(username); err != nil {
		fields["username"] = err.Error()
	}
	if err := validation.ValidateEmail(email); err != nil {
		fields["email"] = err.Error()
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, models.NewFieldValidationError(fields)
	}

	if existing, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("email already registered")
	}
	if existing, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("username already taken")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleMember,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, models.NewValidationError("Identifier and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.GetByEmail(ctx, validation.NormalizeEmail(identifier))
	} else {
		user, err = s.userRepo.GetByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	now := s.now()
	token, err := middleware.IssueToken(s.jwtSecret, user.ID, AccessTokenTTL, now)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, ExpiresAt: now.Add(AccessTokenTTL), User: user}, nil
}

// Logout revokes the token until it would have expired on its own.
func (s *UserService) Logout(ctx context.Context, claims *middleware.TokenClaims) error {
	if s.rdb == nil || claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, cache.BlacklistKey(claims.JTI), "1", ttl).Err(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IsRevoked reports whether the token was logged out.
func (s *UserService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, cache.BlacklistKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Actor loads the caller's current role from the primary database, never from
// a cache, so a demotion takes effect on the next request.
func (s *UserService) Actor(ctx context.Context, userID uint) (models.Actor, *models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.Actor{}, nil, err
	}
	return models.ActorFor(user), user, nil
}

// GetUser returns a public profile, cached briefly.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	_, err := cache.Aside(ctx, s.rdb, cache.UserKey(id), &user, cache.UserTTL, func() error {
		u, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes username, email or password. A password change
// requires the current password.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if username := strings.TrimSpace(in.Username); username != "" && username != user.Username {
		if err := validation.ValidateUsername(username); err != nil {
			fields["username"] = err.Error()
		}
		user.Username = username
	}
	if email := validation.NormalizeEmail(in.Email); email != "" && email != user.Email {
		if err := validation.ValidateEmail(email); err != nil {
			fields["email"] = err.Error()
		}
		user.Email = email
	}
	if in.NewPassword != "" {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.CurrentPassword)) != nil {
			fields["current_password"] = "current password is incorrect"
		} else if err := validation.ValidatePassword(in.NewPassword); err != nil {
			fields["new_password"] = err.Error()
		}
	}
	if len(fields) > 0 {
		return nil, models.NewFieldValidationError(fields)
	}

	if in.NewPassword != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		user.Password = string(hashed)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.invalidate(ctx, user.ID)
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, actor models.Actor, page, perPage int) ([]models.User, int64, error) {
	if err := s.gate.Authorize(ctx, actor, ActionListUsers); err != nil {
		return nil, 0, err
	}
	window, _, _ := Pagination(page, perPage)
	users, err := s.userRepo.List(ctx, window)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListAdmins returns every staff account.
func (s *UserService) ListAdmins(ctx context.Context, actor models.Actor) ([]models.User, error) {
	if err := s.gate.Authorize(ctx, actor, ActionListUsers); err != nil {
		return nil, err
	}
	return s.userRepo.ListByRole(ctx, models.RoleAdmin)
}

// SetRole promotes or demotes a user. Admins cannot change their own role.
func (s *UserService) SetRole(ctx context.Context, actor models.Actor, targetID uint, role models.Role) (*models.User, error) {
	if err := s.gate.Authorize(ctx, actor, ActionChangeRole); err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && role != models.RoleMember {
		return nil, models.NewValidationError("unknown role")
	}
	if targetID == actor.UserID {
		return nil, models.NewConflictError("cannot change your own role")
	}
	if err := s.userRepo.SetRole(ctx, targetID, role); err != nil {
		return nil, err
	}
	s.gate.Record(ctx, actor, ActionChangeRole, map[string]interface{}{"target_id": targetID, "role": string(role)})
	s.invalidate(ctx, targetID)
	return s.userRepo.GetByID(ctx, targetID)
}

// DeleteUser removes an account that owns no solves. Admins cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actor models.Actor, targetID uint) error {
	if err := s.gate.Authorize(ctx, actor, ActionDeleteUser); err != nil {
		return err
	}
	if targetID == actor.UserID {
		return models.NewConflictError("cannot delete your own account")
	}
	if err := s.userRepo.Delete(ctx, targetID); err != nil {
		return err
	}
	s.gate.Record(ctx, actor, ActionDeleteUser, map[string]interface{}{"target_id": targetID})
	s.invalidate(ctx, targetID)
	return nil
}

func (s *UserService) invalidate(ctx context.Context, userID uint) {
	cache.InvalidateUser(ctx, s.rdb, userID)
	// usernames are denormalized into cached standings
	_ = cache.InvalidateLeaderboard(ctx, s.rdb)
}
