package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/auth-service/internal/models"
	"opsuite/auth-service/internal/utils"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/cache"
	"opsuite/pkg/notify"
	"opsuite/pkg/validator"
)

const (
	profileTTL      = 5 * time.Minute
	tempPasswordLen = 10
	minPasswordLen  = 8
)

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, tenantID, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	ListByTenant(ctx context.Context, tenantID, role string) ([]models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type TenantRepository interface {
	Create(ctx context.Context, t *models.Tenant) error
	FindByCode(ctx context.Context, code string) (*models.Tenant, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
}

type AuthService struct {
	users   UserRepository
	tenants TenantRepository
	jwtUtil *utils.JWTUtil
	email   EmailService
	google  GoogleVerifier
	cache   cache.Cache
	notify  notify.Sender
	log     *zap.Logger
}

func NewAuthService(users UserRepository, tenants TenantRepository, jwtUtil *utils.JWTUtil, email EmailService,
	google GoogleVerifier, c cache.Cache, n notify.Sender, log *zap.Logger) *AuthService {
	return &AuthService{
		users:   users,
		tenants: tenants,
		jwtUtil: jwtUtil,
		email:   email,
		google:  google,
		cache:   c,
		notify:  n,
		log:     log,
	}
}

type RegisterInput struct {
	TenantCode string `json:"tenant_code" validate:"required"`
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"omitempty,e164"`
}

type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone" validate:"omitempty,e164"`
}

func profileKey(userID string) string {
	return "user_profile:" + userID
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

func (s *AuthService) activeTenant(ctx context.Context, code string) (*models.Tenant, error) {
	t, err := s.tenants.FindByCode(ctx, models.NormalizeTenantCode(code))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown organisation %q", apperr.ErrNotFound, code)
		}
		return nil, err
	}
	if !t.Active {
		return nil, fmt.Errorf("%w: organisation is disabled", apperr.ErrForbidden)
	}
	return t, nil
}

// Register creates a client account with a mailed temporary password.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, error) {
	if err := validator.Struct(in); err != nil {
		return "", err
	}
	tenant, err := s.activeTenant(ctx, in.TenantCode)
	if err != nil {
		return "", err
	}

	email := models.NormalizeEmail(in.Email)
	if _, err := s.users.FindByEmail(ctx, tenant.ID.Hex(), email); err == nil {
		return "", fmt.Errorf("%w: user already exists", apperr.ErrDuplicate)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return "", err
	}

	user := &models.User{
		TenantID:      tenant.ID.Hex(),
		Email:         email,
		Role:          authclient.RoleClient,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Phone:         in.Phone,
		ResetRequired: true,
	}
	if err := s.createWithTempPassword(ctx, user, tenant.Name); err != nil {
		return "", err
	}

	return s.jwtUtil.GenerateToken(user.ID.Hex(), user.TenantID, user.Role, user.ResetRequired)
}

// createWithTempPassword stores user and mails a temporary password. The user
// is removed again when the mail cannot be sent.
func (s *AuthService) createWithTempPassword(ctx context.Context, user *models.User, tenantName string) error {
	tempPass := utils.GenerateCode(tempPasswordLen)
	if err := user.SetPassword(tempPass); err != nil {
		return err
	}
	user.ResetRequired = true
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return fmt.Errorf("%w: user already exists", apperr.ErrDuplicate)
		}
		return err
	}

	if err := s.email.SendTemporaryPassword(user.Email, tenantName, tempPass); err != nil {
		s.log.Error("temporary password mail failed", zap.String("email", user.Email), zap.Error(err))
		_ = s.users.Delete(ctx, user.ID)
		return errors.New("failed to send email with temporary password")
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, tenantCode, email, password string) (string, error) {
	tenant, err := s.activeTenant(ctx, tenantCode)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", errInvalidCredentials
		}
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, tenant.ID.Hex(), models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", errInvalidCredentials
		}
		return "", err
	}
	if user.Banned {
		return "", fmt.Errorf("%w: user is blocked", apperr.ErrForbidden)
	}
	if err := user.ComparePassword(password); err != nil {
		return "", errInvalidCredentials
	}

	return s.jwtUtil.GenerateToken(user.ID.Hex(), user.TenantID, user.Role, user.ResetRequired)
}

// GoogleLogin signs in, or signs up as a client, the owner of a verified
// Google ID token.
func (s *AuthService) GoogleLogin(ctx context.Context, tenantCode, idToken string) (string, error) {
	email, given, family, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	tenant, err := s.activeTenant(ctx, tenantCode)
	if err != nil {
		return "", err
	}

	email = models.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, tenant.ID.Hex(), email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		user = &models.User{
			TenantID:  tenant.ID.Hex(),
			Email:     email,
			Role:      authclient.RoleClient,
			FirstName: given,
			LastName:  family,
		}
		if err := user.SetPassword(utils.GenerateCode(32)); err != nil {
			return "", err
		}
		if err := s.users.Create(ctx, user); err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	case user.Banned:
		return "", fmt.Errorf("%w: user is blocked", apperr.ErrForbidden)
	}

	return s.jwtUtil.GenerateToken(user.ID.Hex(), user.TenantID, user.Role, user.ResetRequired)
}

// Validate implements authclient.Validator for tokens issued here.
func (s *AuthService) Validate(ctx context.Context, token string) (*authclient.Identity, error) {
	claims, err := s.jwtUtil.ValidateToken(token)
	if err != nil {
		return nil, authclient.ErrInvalidToken
	}
	revoked, err := s.cache.Exists(ctx, blacklistKey(claims.ID))
	if err != nil {
		return nil, fmt.Errorf("blacklist lookup: %w", err)
	}
	if revoked {
		return nil, authclient.ErrInvalidToken
	}
	return &authclient.Identity{
		UserID:        claims.UserID,
		TenantID:      claims.TenantID,
		Role:          claims.Role,
		ResetRequired: claims.ResetRequired,
	}, nil
}

// Logout blacklists the token id until the token would have expired.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.jwtUtil.ValidateToken(token)
	if err != nil {
		return fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, blacklistKey(claims.ID), true, ttl)
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	var cached models.User
	if err := s.cache.Get(ctx, profileKey(userID), &cached); err == nil {
		return &cached, nil
	}

	user, err := s.userByHex(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, profileKey(userID), user, profileTTL); err != nil {
		s.log.Warn("failed to cache user profile", zap.String("user_id", userID), zap.Error(err))
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req ProfileUpdate) (*models.User, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.userByHex(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, profileKey(userID))
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: new_password length must be at least %d", apperr.ErrValidation, minPasswordLen)
	}
	user, err := s.userByHex(ctx, userID)
	if err != nil {
		return err
	}
	if err := user.ComparePassword(oldPassword); err != nil {
		return fmt.Errorf("%w: invalid old password", apperr.ErrValidation)
	}
	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.ResetRequired = false
	return s.users.Update(ctx, user)
}

func (s *AuthService) ResendTemporaryPassword(ctx context.Context, tenantCode, email string) error {
	tenant, err := s.activeTenant(ctx, tenantCode)
	if err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, tenant.ID.Hex(), models.NormalizeEmail(email))
	if err != nil {
		return err
	}

	tempPass := utils.GenerateCode(tempPasswordLen)
	if err := user.SetPassword(tempPass); err != nil {
		return err
	}
	user.ResetRequired = true
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	return s.email.SendTemporaryPassword(user.Email, tenant.Name, tempPass)
}

func (s *AuthService) SetInitialPassword(ctx context.Context, userID, tempPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: new_password length must be at least %d", apperr.ErrValidation, minPasswordLen)
	}
	user, err := s.userByHex(ctx, userID)
	if err != nil {
		return err
	}
	if !user.ResetRequired {
		return fmt.Errorf("%w: this action is only allowed for accounts requiring password reset", apperr.ErrConflict)
	}
	if err := user.ComparePassword(tempPassword); err != nil {
		return fmt.Errorf("%w: invalid temporary password", apperr.ErrValidation)
	}
	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.ResetRequired = false
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	_ = s.notify.Send(ctx, notify.Request{
		TenantID: user.TenantID,
		UserID:   user.ID.Hex(),
		Role:     user.Role,
		Title:    "Welcome",
		Message:  "Your password is set. You can now use the portal.",
		Type:     "account_activated",
	})
	return nil
}

// UsersByRole lists users of the caller's tenant with the given role.
func (s *AuthService) UsersByRole(ctx context.Context, tenantID, role string) ([]models.User, error) {
	if !authclient.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, role)
	}
	return s.users.ListByTenant(ctx, tenantID, role)
}

func (s *AuthService) userByHex(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.ErrInvalidID
	}
	return s.users.FindByID(ctx, oid)
}
