package users

import (
	"context"
	"errors"
	"strings"

	"esign-backend/internal/shared/telemetry"
)

var ErrInvalidInput = errors.New("invalid user input")

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// UpsertFromAuth records the owner identity returned by Google so documents
// carry a stable owner name and email.
func (s *Service) UpsertFromAuth(ctx context.Context, user User) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.ID == "" || user.Email == "" {
		return ErrInvalidInput
	}
	if err := s.Repo.Upsert(ctx, user); err != nil {
		return err
	}
	telemetry.Info("users.upserted", map[string]any{"user_id": user.ID})
	return nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID)
}
