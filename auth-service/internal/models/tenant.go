package models

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SystemTenantCode owns the superadmin account.
const SystemTenantCode = "system"

var tenantCodeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,30}[a-z0-9]$`)

type Tenant struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code      string             `bson:"code" json:"code"`
	Name      string             `bson:"name" json:"name" validate:"required"`
	Active    bool               `bson:"active" json:"active"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

func NormalizeTenantCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func ValidTenantCode(code string) bool {
	return tenantCodeRe.MatchString(code)
}
