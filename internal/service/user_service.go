package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"homeservices/internal/domain"
	"homeservices/internal/models"
	"homeservices/internal/validator"

	"github.com/rs/zerolog"
)

// RegisterInput is the profile a user submits when joining.
type RegisterInput struct {
	Role           string `json:"role" validate:"required,oneof=customer provider admin"`
	FullName       string `json:"full_name" validate:"required,max=120"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

type UserService struct {
	repo       domain.Repository
	logger     *zerolog.Logger
	blockedMap map[string]bool
}

func NewUserService(repo domain.Repository, blocked []string, logger *zerolog.Logger) *UserService {
	blockedMap := make(map[string]bool, len(blocked))
	for _, id := range blocked {
		blockedMap[id] = true
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &UserService{
		repo:       repo,
		logger:     logger,
		blockedMap: blockedMap,
	}
}

func (s *UserService) IsBlocked(userID string) bool {
	return s.blockedMap[userID]
}

// Register creates the profile of the calling identity. Providers wait for
// admin verification, customers are verified right away.
func (s *UserService) Register(ctx context.Context, actor domain.Actor, in RegisterInput) (*models.User, error) {
	if actor.UserID == "" {
		return nil, domain.ErrForbidden
	}
	if verr := validator.Struct(in); verr != nil {
		return nil, verr
	}

	role, _ := models.ParseRole(in.Role)
	if actor.Role != "" && actor.Role != role {
		return nil, domain.FieldError("role", "does not match the identity role")
	}
	// an admin profile needs an admin token, never a self-declared role
	if role == models.RoleAdmin && !actor.IsAdmin() {
		return nil, domain.FieldError("role", "does not match the identity role")
	}

	user := &models.User{
		ID:                 actor.UserID,
		Role:               role,
		FullName:           strings.TrimSpace(in.FullName),
		Email:              strings.TrimSpace(in.Email),
		TelegramChatID:     in.TelegramChatID,
		VerificationStatus: models.ModerationApproved,
	}
	if in.Phone != "" {
		phone, ok := validator.NormalizePhone(in.Phone)
		if !ok {
			return nil, domain.FieldError("phone", "must be a valid 10-digit mobile number starting with 6-9")
		}
		user.Phone = phone
	}
	if role == models.RoleProvider {
		user.VerificationStatus = models.ModerationPending
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("user registered")
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context, actor domain.Actor, rawRole string) ([]*models.User, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	var role models.Role
	if rawRole != "" {
		parsed, ok := models.ParseRole(rawRole)
		if !ok {
			return nil, domain.FieldError("role", "unknown role")
		}
		role = parsed
	}
	return s.repo.ListUsers(ctx, role)
}

// SetUserModeration applies an admin decision to a pending provider account.
func (s *UserService) SetUserModeration(ctx context.Context, actor domain.Actor, id, rawDecision string) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	decision, ok := models.ParseModerationStatus(rawDecision)
	if !ok || decision == models.ModerationPending {
		return nil, domain.FieldError("decision", "must be approved or rejected")
	}

	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.VerificationStatus.CanModerateTo(decision) {
		return nil, fmt.Errorf("user %s is %s: %w", id, user.VerificationStatus, domain.ErrInvalidTransition)
	}
	if err := s.repo.SetUserVerification(ctx, id, user.VerificationStatus, decision); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrInvalidTransition)
		}
		return nil, err
	}

	user.VerificationStatus = decision
	s.logger.Info().Str("user_id", id).Str("decision", string(decision)).Str("admin", actor.UserID).Msg("user moderated")
	return user, nil
}
