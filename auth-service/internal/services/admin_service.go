package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"opsuite/auth-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/validator"
)

type CreateStaffInput struct {
	TenantID  string `json:"tenant_id"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone" validate:"omitempty,e164"`
	Role      string `json:"role" validate:"required,oneof=admin finance warehouse inspector staff"`
}

// CreateStaff adds a staff member to the actor's tenant. Superadmins may
// target any tenant through TenantID.
func (s *AuthService) CreateStaff(ctx context.Context, actor authclient.Identity, in CreateStaffInput) (*models.User, error) {
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	tenantID := actor.TenantID
	if actor.Role == authclient.RoleSuperadmin && in.TenantID != "" {
		tenantID = in.TenantID
	}

	tenant, err := s.tenantByHex(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		TenantID:  tenantID,
		Email:     models.NormalizeEmail(in.Email),
		Role:      in.Role,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
	}
	if err := s.createWithTempPassword(ctx, user, tenant.Name); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor authclient.Identity, role string) ([]models.User, error) {
	if role != "" && !authclient.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, role)
	}
	return s.users.ListByTenant(ctx, actor.TenantID, role)
}

func (s *AuthService) ChangeRole(ctx context.Context, actor authclient.Identity, userID, role string) (*models.User, error) {
	if !authclient.ValidRole(role) || role == authclient.RoleSuperadmin {
		return nil, fmt.Errorf("%w: role %q cannot be assigned", apperr.ErrValidation, role)
	}
	user, err := s.managedUser(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	user.Role = role
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, profileKey(userID))
	return user, nil
}

func (s *AuthService) SetBlocked(ctx context.Context, actor authclient.Identity, userID string, blocked bool) error {
	if userID == actor.UserID {
		return fmt.Errorf("%w: you cannot block yourself", apperr.ErrConflict)
	}
	user, err := s.managedUser(ctx, actor, userID)
	if err != nil {
		return err
	}
	user.Banned = blocked
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, profileKey(userID))
	return nil
}

// managedUser loads a user the actor may administer.
func (s *AuthService) managedUser(ctx context.Context, actor authclient.Identity, userID string) (*models.User, error) {
	user, err := s.userByHex(ctx, userID)
	if err != nil {
		return nil, err
	}
	if actor.Role != authclient.RoleSuperadmin && user.TenantID != actor.TenantID {
		// hide users of other tenants
		return nil, apperr.ErrNotFound
	}
	if user.Role == authclient.RoleSuperadmin {
		return nil, fmt.Errorf("%w: superadmin accounts cannot be changed", apperr.ErrForbidden)
	}
	return user, nil
}

type CreateTenantInput struct {
	Code           string `json:"code" validate:"required"`
	Name           string `json:"name" validate:"required"`
	AdminEmail     string `json:"admin_email" validate:"required,email"`
	AdminFirstName string `json:"admin_first_name" validate:"required"`
	AdminLastName  string `json:"admin_last_name" validate:"required"`
}

// CreateTenant registers an organisation and its first admin.
func (s *AuthService) CreateTenant(ctx context.Context, in CreateTenantInput) (*models.Tenant, *models.User, error) {
	if err := validator.Struct(in); err != nil {
		return nil, nil, err
	}
	code := models.NormalizeTenantCode(in.Code)
	if !models.ValidTenantCode(code) {
		return nil, nil, fmt.Errorf("%w: code must be 3-32 lowercase letters, digits or dashes", apperr.ErrValidation)
	}

	tenant := &models.Tenant{Code: code, Name: in.Name, Active: true}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, nil, fmt.Errorf("%w: organisation code %q is taken", apperr.ErrDuplicate, code)
		}
		return nil, nil, err
	}

	admin := &models.User{
		TenantID:  tenant.ID.Hex(),
		Email:     models.NormalizeEmail(in.AdminEmail),
		Role:      authclient.RoleAdmin,
		FirstName: in.AdminFirstName,
		LastName:  in.AdminLastName,
	}
	if err := s.createWithTempPassword(ctx, admin, tenant.Name); err != nil {
		return tenant, nil, err
	}
	return tenant, admin, nil
}

func (s *AuthService) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	return s.tenants.List(ctx)
}

// EnsureSuperadmin creates the system tenant and superadmin on first start.
func (s *AuthService) EnsureSuperadmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	tenant, err := s.tenants.FindByCode(ctx, models.SystemTenantCode)
	if errors.Is(err, apperr.ErrNotFound) {
		tenant = &models.Tenant{Code: models.SystemTenantCode, Name: "System", Active: true}
		err = s.tenants.Create(ctx, tenant)
	}
	if err != nil {
		return err
	}

	email = models.NormalizeEmail(email)
	if _, err := s.users.FindByEmail(ctx, tenant.ID.Hex(), email); err == nil {
		return nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	user := &models.User{
		TenantID:  tenant.ID.Hex(),
		Email:     email,
		Role:      authclient.RoleSuperadmin,
		FirstName: "System",
		LastName:  "Administrator",
	}
	if err := user.SetPassword(password); err != nil {
		return err
	}
	return s.users.Create(ctx, user)
}

func (s *AuthService) tenantByHex(ctx context.Context, id string) (*models.Tenant, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.ErrInvalidID
	}
	return s.tenants.FindByID(ctx, oid)
}
