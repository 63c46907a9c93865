package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/repos"
	"github.com/schoolhub/backend/internal/requestdata"
	"github.com/schoolhub/backend/internal/types"
)

type UserService interface {
	GetMe(ctx context.Context) (*types.User, error)
	ListUsers(ctx context.Context) ([]*types.User, error)
	ChangeRole(ctx context.Context, userID uuid.UUID, role string) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type userService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, userTokenRepo repos.UserTokenRepo) UserService {
	return &userService{
		db:            db,
		log:           baseLog.With("service", "UserService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
	}
}

func (s *userService) GetMe(ctx context.Context) (*types.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated")
	}
	users, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{rd.UserID})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user not found")
	}
	return users[0], nil
}

func (s *userService) ListUsers(ctx context.Context) ([]*types.User, error) {
	users, err := s.userRepo.GetAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *userService) ChangeRole(ctx context.Context, userID uuid.UUID, role string) error {
	if !types.ValidRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}
	users, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if len(users) == 0 {
		return fmt.Errorf("user not found")
	}
	if err := s.userRepo.UpdateFields(ctx, nil, userID, map[string]interface{}{"role": role}); err != nil {
		s.log.Error("ChangeRole failed", "error", err, "user_id", userID)
		return fmt.Errorf("change role: %w", err)
	}
	return nil
}

// DeleteUser removes the account and revokes its sessions in one
// transaction.
func (s *userService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userTokenRepo.FullDeleteByUserIDs(ctx, tx, []uuid.UUID{userID}); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}
		if err := s.userRepo.SoftDeleteByIDs(ctx, tx, []uuid.UUID{userID}); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}
