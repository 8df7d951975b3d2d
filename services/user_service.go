package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/utils"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// UserService manages portal users. Roles live here, not in identity tokens.
type UserService struct {
	store  UserStore
	blobs  BlobStorage
	logger *zap.Logger
	now    func() time.Time
}

// NewUserService wires a UserService
func NewUserService(store UserStore, blobs BlobStorage, logger *zap.Logger) *UserService {
	return &UserService{store: store, blobs: blobs, logger: logger, now: time.Now}
}

func userError(err error) error {
	var appErr *utils.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, ErrRecordNotFound):
		return utils.NotFound(utils.CodeUserNotFound, "User", err)
	case errors.Is(err, ErrDuplicate):
		return utils.Conflict(utils.CodeUserExists, "A user with this ID or email already exists", err)
	}
	return utils.Internal(utils.CodeDatabase, "Failed to access user", err)
}

// Lookup returns the stored user for uid
func (s *UserService) Lookup(ctx context.Context, uid string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return nil, userError(err)
	}
	return user, nil
}

// EnsureUser returns the user for uid, creating it with the default role on first login.
// The boolean reports whether the user was created.
func (s *UserService) EnsureUser(ctx context.Context, uid string, profile IdentityProfile) (*models.User, bool, error) {
	if uid == "" {
		return nil, false, utils.Unauthorized("Could not extract user ID from token")
	}
	now := s.now()

	existing, err := s.store.GetUser(ctx, uid)
	if err == nil {
		if err := s.store.TouchSignIn(ctx, uid, now); err != nil {
			s.logger.Warn("Failed to record sign-in", zap.String("uid", uid), zap.Error(err))
		} else {
			existing.LastSignInTime = &now
		}
		return existing, false, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, false, userError(err)
	}

	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return nil, false, utils.ValidationError("Email not provided by identity provider", nil)
	}
	user := &models.User{
		UID:            uid,
		Email:          email,
		DisplayName:    strings.TrimSpace(profile.DisplayName),
		PhotoURL:       profile.PhotoURL,
		Role:           models.DefaultRole,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastSignInTime: &now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// a concurrent first login may have won the race
			if existing, getErr := s.store.GetUser(ctx, uid); getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, userError(err)
	}

	s.logger.Info("User created", zap.String("uid", uid), zap.String("role", string(user.Role)))
	return user, true, nil
}

// GetProfile returns the actor's own profile
func (s *UserService) GetProfile(ctx context.Context, actor Actor) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.Lookup(ctx, actor.UID)
}

// UpdateProfile changes the actor's own profile fields
func (s *UserService) UpdateProfile(ctx context.Context, actor Actor, update UserUpdate) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if update.DisplayName != nil && strings.TrimSpace(*update.DisplayName) == "" {
		return nil, utils.ValidationError("display_name must not be blank", nil)
	}
	user, err := s.store.UpdateUser(ctx, actor.UID, update)
	if err != nil {
		return nil, userError(err)
	}
	return user, nil
}

// ListUsersByRole returns all users with role, or every user when role is empty
func (s *UserService) ListUsersByRole(ctx context.Context, actor Actor, role models.Role) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, utils.Forbidden("Only admins can list users")
	}
	if role != "" && !role.Valid() {
		return nil, utils.ValidationError("Invalid role", nil).WithDetails(string(role))
	}
	users, err := s.store.ListUsersByRole(ctx, role)
	if err != nil {
		return nil, userError(err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// UpdateUserRole assigns a new role to a user
func (s *UserService) UpdateUserRole(ctx context.Context, actor Actor, uid string, role models.Role) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, utils.Forbidden("Only admins can change roles")
	}
	if !role.Valid() {
		return nil, utils.ValidationError("Invalid role", nil).WithDetails(string(role))
	}
	if uid == actor.UID && role != models.RoleAdmin {
		return nil, utils.ValidationError("Admins cannot remove their own admin role", nil)
	}
	user, err := s.store.SetUserRole(ctx, uid, role)
	if err != nil {
		return nil, userError(err)
	}
	s.logger.Info("User role updated", zap.String("uid", uid), zap.String("role", string(role)), zap.String("updated_by", actor.UID))
	return user, nil
}

// DeleteUser removes a user and their profile document blobs
func (s *UserService) DeleteUser(ctx context.Context, actor Actor, uid string) error {
	if !actor.IsAdmin() {
		return utils.Forbidden("Only admins can delete users")
	}
	if uid == actor.UID {
		return utils.ValidationError("Admins cannot delete themselves", nil)
	}

	docs, err := s.store.ListUserDocuments(ctx, uid)
	if err != nil {
		return userError(err)
	}
	var blobErr error
	for _, doc := range docs {
		blobErr = multierr.Append(blobErr, s.blobs.Delete(ctx, doc.StorageKey))
	}
	if blobErr != nil {
		s.logger.Warn("Some user blobs could not be deleted", zap.String("uid", uid), zap.Error(blobErr))
	}

	if err := s.store.DeleteUser(ctx, uid); err != nil {
		return userError(err)
	}
	s.logger.Info("User deleted", zap.String("uid", uid), zap.String("deleted_by", actor.UID))
	return nil
}
