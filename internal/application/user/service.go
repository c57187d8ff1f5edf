package user

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"obraflow-backend/internal/models"
	"obraflow-backend/internal/pkg/constants"
	"obraflow-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const userSessionsPrefix = "user_sessions:"
const sessionPrefix = "session:"

// Service holds DB and Redis for user operations.
type Service struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

// CreateUserInput for POST create-user.
type CreateUserInput struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Fullname string `json:"fullname"`
}

// CreateUser creates a user with the viewer role. Returns the created model
// (caller sanitizes password_hash).
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if strings.TrimSpace(in.UserName) == "" {
		return nil, errors.New("Username is required and must be a non-empty string")
	}
	if in.Email == "" || !validation.IsValidEmail(in.Email) {
		return nil, errors.New("Invalid email format")
	}
	if in.Password == "" || !validation.IsValidPassword(in.Password) {
		return nil, errors.New("Invalid password format")
	}
	trimmed := strings.TrimSpace(in.Fullname)
	if trimmed == "" {
		return nil, errors.New("Full name is required and must be a non-empty string")
	}
	if !validation.IsValidFullname(trimmed) {
		return nil, errors.New("Full name contains invalid characters (only letters, spaces, hyphens, and apostrophes allowed)")
	}

	userName := strings.TrimSpace(in.UserName)
	email := strings.TrimSpace(strings.ToLower(in.Email))
	fullname := titleCaseAndNormalize(trimmed)

	var existing models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, errors.New("Email already registered")
	}
	if err := s.DB.WithContext(ctx).Where("user_name = ?", userName).First(&existing).Error; err == nil {
		return nil, errors.New("Username already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), 10)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		UserName:     userName,
		Email:        email,
		PasswordHash: string(hash),
		Fullname:     fullname,
		Role:         constants.Viewer,
	}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser updates allowed fields: user_name, email, password, fullname.
func (s *Service) UpdateUser(ctx context.Context, userID string, fields map[string]interface{}) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("Missing user ID")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, errors.New("Invalid user ID format (must be a valid UUID)")
	}
	if len(fields) == 0 {
		return nil, errors.New("Missing update fields")
	}

	allowed := map[string]bool{
		"user_name": true, "email": true, "password": true, "fullname": true,
	}
	upd := make(map[string]interface{})
	for k, v := range fields {
		if !allowed[k] {
			continue
		}
		upd[k] = v
	}
	if len(upd) == 0 {
		return nil, errors.New("No valid update fields provided")
	}

	if e, ok := upd["email"].(string); ok && e != "" {
		if !validation.IsValidEmail(e) {
			return nil, errors.New("Invalid email format")
		}
		upd["email"] = strings.TrimSpace(strings.ToLower(e))
	}
	if p, ok := upd["password"].(string); ok && p != "" {
		if !validation.IsValidPassword(p) {
			return nil, errors.New("Invalid password format")
		}
		hash, _ := bcrypt.GenerateFromPassword([]byte(p), 10)
		upd["password_hash"] = string(hash)
		delete(upd, "password")
	}
	if fn, ok := upd["fullname"].(string); ok {
		trimmed := strings.TrimSpace(fn)
		if trimmed == "" {
			return nil, errors.New("Full name must be a non-empty string")
		}
		if !validation.IsValidFullname(trimmed) {
			return nil, errors.New("Full name contains invalid characters")
		}
		upd["fullname"] = titleCaseAndNormalize(trimmed)
	}
	if un, ok := upd["user_name"].(string); ok {
		upd["user_name"] = strings.TrimSpace(un)
	}

	// Uniqueness: no other user (excluding this one) may have the new email or user_name
	if e, ok := upd["email"].(string); ok {
		var dup models.User
		if err := s.DB.WithContext(ctx).Where("email = ? AND user_id != ?", e, userID).First(&dup).Error; err == nil {
			return nil, errors.New("Email already registered")
		}
	}
	if un, ok := upd["user_name"].(string); ok {
		var dup models.User
		if err := s.DB.WithContext(ctx).Where("user_name = ? AND user_id != ?", un, userID).First(&dup).Error; err == nil {
			return nil, errors.New("Username already registered")
		}
	}

	result := s.DB.WithContext(ctx).Model(&models.User{}).Where("user_id = ?", userID).Updates(upd)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, errors.New("User not found")
	}

	var u models.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ViewUser returns user by ID.
func (s *Service) ViewUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("Missing user ID")
	}
	var u models.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New("User not found")
		}
		return nil, err
	}
	return &u, nil
}

// UpdateUserRoleInput carries actor context for the role-hierarchy check.
type UpdateUserRoleInput struct {
	ActorUserID  string
	ActorRole    string
	TargetUserID string
	TargetRole   string
}

// UpdateUserRole updates the target user's role and destroys their sessions
// so stale permissions cannot outlive the change. Admins cannot mint or
// touch superadmins, and nobody reassigns their own role.
func (s *Service) UpdateUserRole(ctx context.Context, in UpdateUserRoleInput) (*models.User, error) {
	if !constants.IsValidRole(in.TargetRole) {
		return nil, errors.New("Invalid role")
	}
	if in.ActorUserID == in.TargetUserID {
		return nil, errors.New("Cannot change your own role")
	}
	if in.ActorRole != constants.Superadmin {
		if in.TargetRole == constants.Superadmin {
			return nil, errors.New("Only a superadmin can assign the superadmin role")
		}
	}

	var u models.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", in.TargetUserID).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New("User not found")
		}
		return nil, err
	}
	if u.Role == constants.Superadmin && in.ActorRole != constants.Superadmin {
		return nil, errors.New("Only a superadmin can modify a superadmin")
	}
	u.Role = in.TargetRole
	if err := s.DB.WithContext(ctx).Save(&u).Error; err != nil {
		return nil, err
	}
	s.destroySessions(ctx, in.TargetUserID)
	return &u, nil
}

// RemoveUser soft-deletes the target account and destroys its sessions.
func (s *Service) RemoveUser(ctx context.Context, actorUserID, targetUserID string) error {
	if targetUserID == "" {
		return errors.New("Missing user ID")
	}
	if actorUserID == targetUserID {
		return errors.New("Cannot remove your own account")
	}
	result := s.DB.WithContext(ctx).Where("user_id = ?", targetUserID).Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("User not found")
	}
	s.destroySessions(ctx, targetUserID)
	return nil
}

// destroySessions deletes every live session of a user from Redis.
func (s *Service) destroySessions(ctx context.Context, userID string) {
	if s.Rdb == nil {
		return
	}
	setKey := userSessionsPrefix + userID
	ids, err := s.Rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return
	}
	for _, id := range ids {
		s.Rdb.Del(ctx, sessionPrefix+id)
	}
	s.Rdb.Del(ctx, setKey)
}

func titleCaseAndNormalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	runes := []rune(s)
	var b strings.Builder
	capitalize := true
	for _, r := range runes {
		if unicode.IsSpace(r) {
			if !capitalize {
				b.WriteRune(' ')
				capitalize = true
			}
			continue
		}
		if capitalize {
			b.WriteRune(unicode.ToUpper(r))
			capitalize = false
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
