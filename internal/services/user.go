package services

import (
	"context"
	"errors"
	"regexp"
	"socialconnect/internal/db"
	"socialconnect/internal/models"
	"socialconnect/internal/utils"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Email     string `validate:"required,email,max=254"`
	Username  string `validate:"required"`
	Password  string `validate:"required,min=6"`
	FirstName string `validate:"required,max=30"`
	LastName  string `validate:"required,max=30"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User        *models.User
	AccessToken string
}

// UserService manages the local user mirror and delegates credentials to
// the identity provider.
type UserService struct {
	db       *gorm.DB
	identity IdentityProvider
	log      *zap.Logger
}

func NewUserService(conn *gorm.DB, identity IdentityProvider, log *zap.Logger) *UserService {
	return &UserService{db: conn, identity: identity, log: log}
}

func (s *UserService) byID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) byEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Register creates an inactive local user after the provider accepts the
// sign-up. The account activates once Verify sees a confirmed identity.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if !usernamePattern.MatchString(in.Username) {
		return nil, Validationf("Username must be 3-30 characters long and contain only letters, numbers, and underscores.")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = ?", strings.ToLower(in.Email)).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &wrapped{msg: "Email already exists.", base: ErrConflict}
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", in.Username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &wrapped{msg: "Username already exists.", base: ErrConflict}
	}

	err := s.identity.SignUp(ctx, in.Email, in.Password, map[string]string{
		"username":   in.Username,
		"first_name": in.FirstName,
		"last_name":  in.LastName,
	})
	if err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Email:     in.Email,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  hash,
		Profile:   &models.Profile{ProfileVisibility: true},
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return nil, &wrapped{msg: "Email or username already exists.", base: ErrConflict}
		}
		return nil, err
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return &user, nil
}

// Verify activates the local user behind a confirmed provider token.
func (s *UserService) Verify(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, Validationf("Access token missing")
	}
	identity, err := s.identity.VerifyIdentity(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.byEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	if identity.Confirmed && !user.IsActive {
		if err := s.db.WithContext(ctx).Model(user).Update("is_active", true).Error; err != nil {
			return nil, err
		}
		user.IsActive = true
		s.log.Info("user verified", zap.Uint("user_id", user.ID))
	}
	return user, nil
}

// Login checks the local password mirror and the active flag, then asks
// the provider for a session token. A provider failure does not block the
// login; the caller falls back to the cookie session.
func (s *UserService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, Validationf("Username/Email and password required")
	}

	var user models.User
	q := s.db.WithContext(ctx)
	if strings.Contains(login, "@") {
		q = q.Where("LOWER(email) = ?", strings.ToLower(login))
	} else {
		q = q.Where("username = ?", login)
	}
	if err := q.First(&user).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrBadLogin
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) || !user.IsActive {
		return nil, ErrBadLogin
	}

	token, err := s.identity.IssueSession(ctx, user.Email, password)
	if err != nil {
		s.log.Warn("identity session not issued", zap.Uint("user_id", user.ID), zap.Error(err))
		token = ""
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		return nil, err
	}
	user.LastLogin = &now

	return &LoginResult{User: &user, AccessToken: token}, nil
}

// Logout revokes the provider token, if there is one.
func (s *UserService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.identity.SignOut(ctx, token)
}

// Authenticate resolves a provider token to an active local user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	identity, err := s.identity.VerifyIdentity(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.byEmail(ctx, identity.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// ActiveByID loads an active user, for session-cookie authentication.
func (s *UserService) ActiveByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.byID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// RequestPasswordReset asks the provider to mail a reset link.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return Validationf("Email is required")
	}
	return s.identity.SendPasswordReset(ctx, email)
}

// ConfirmPasswordReset sets a new password through the provider's recovery
// token and mirrors the hash locally.
func (s *UserService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return Validationf("Token and new password required")
	}
	if len(newPassword) < 6 {
		return Validationf("password must be at least 6 characters")
	}
	identity, err := s.identity.UpdatePassword(ctx, token, newPassword)
	if err != nil {
		return err
	}
	user, err := s.byEmail(ctx, identity.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Provider-only account; nothing to mirror.
			return nil
		}
		return err
	}
	return s.setPassword(ctx, user, newPassword)
}

func (s *UserService) setPassword(ctx context.Context, user *models.User, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Update("password", hash).Error
}

// ChangePassword verifies the old password locally, stores the new one and
// pushes it to the provider on a best-effort basis.
func (s *UserService) ChangePassword(ctx context.Context, user *models.User, token, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return Validationf("Old and new password are required")
	}
	if len(newPassword) < 6 {
		return Validationf("password must be at least 6 characters")
	}
	if !utils.CheckPasswordHash(oldPassword, user.Password) {
		return Validationf("Wrong old password.")
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	if token != "" {
		if _, err := s.identity.UpdatePassword(ctx, token, newPassword); err != nil {
			s.log.Warn("provider password update failed", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	}
	return nil
}

// SearchUsers matches q against username, first and last name.
func (s *UserService) SearchUsers(ctx context.Context, q string) ([]models.Author, error) {
	q = strings.TrimSpace(q)
	found := []models.Author{}
	if q == "" {
		return found, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(first_name) LIKE ? ESCAPE '\\' OR LOWER(last_name) LIKE ? ESCAPE '\\'", pattern, pattern, pattern).
		Order("username ASC").
		Limit(50).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	for i := range users {
		found = append(found, users[i].Public())
	}
	return found, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
