package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	authmodels "meridian/internal/auth/models"
	tenantmodels "meridian/internal/tenant/models"
)

// SigningKey signs the tokens issued by test fixtures and the fake backend.
var SigningKey = []byte("meridian-test-signing-key")

// Token issues an HS256 JWT for subject that expires after ttl. A negative
// ttl yields an already expired token.
func Token(subject string, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(SigningKey)
	if err != nil {
		panic(err)
	}
	return signed
}

// UserBuilder provides a fluent interface for building test users.
type UserBuilder struct {
	user *authmodels.User
}

// NewUserBuilder creates a new UserBuilder with sensible defaults.
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		user: &authmodels.User{
			ID:        uuid.NewString(),
			Email:     "test@example.com",
			FirstName: "Test",
			LastName:  "User",
		},
	}
}

func (b *UserBuilder) WithID(id string) *UserBuilder {
	b.user.ID = id
	return b
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.user.Email = email
	return b
}

func (b *UserBuilder) WithName(firstName, lastName string) *UserBuilder {
	b.user.FirstName = firstName
	b.user.LastName = lastName
	return b
}

func (b *UserBuilder) WithNickname(nickname string) *UserBuilder {
	b.user.Nickname = nickname
	return b
}

func (b *UserBuilder) Build() *authmodels.User {
	u := *b.user
	return &u
}

// TenantBuilder provides a fluent interface for building test tenants.
type TenantBuilder struct {
	tenant *tenantmodels.Tenant
}

// NewTenantBuilder creates a tenant named "Acme" with slug "acme".
func NewTenantBuilder() *TenantBuilder {
	return &TenantBuilder{
		tenant: &tenantmodels.Tenant{
			ID:     "acme",
			Schema: "acme",
			Name:   "Acme",
		},
	}
}

func (b *TenantBuilder) WithSlug(slug string) *TenantBuilder {
	b.tenant.ID = slug
	b.tenant.Schema = slug
	return b
}

func (b *TenantBuilder) WithName(name string) *TenantBuilder {
	b.tenant.Name = name
	return b
}

func (b *TenantBuilder) WithTheme(primary, loginMessage string) *TenantBuilder {
	b.tenant.Theme = &tenantmodels.Theme{PrimaryColor: primary, LoginMessage: loginMessage}
	return b
}

func (b *TenantBuilder) Build() *tenantmodels.Tenant {
	t := *b.tenant
	if b.tenant.Theme != nil {
		theme := *b.tenant.Theme
		t.Theme = &theme
	}
	return &t
}
