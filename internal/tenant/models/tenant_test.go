package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "meridian/pkg/domain-errors"
)

type TenantModelSuite struct {
	suite.Suite
}

func TestTenantModelSuite(t *testing.T) {
	suite.Run(t, new(TenantModelSuite))
}

func (s *TenantModelSuite) TestValidateBranding() {
	s.Run("name is enough", func() {
		s.NoError((&Tenant{Name: "Acme"}).ValidateBranding())
	})

	s.Run("missing name is invalid input", func() {
		err := (&Tenant{LogoURL: "https://cdn/logo.png"}).ValidateBranding()
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("overlong name is rejected", func() {
		err := (&Tenant{Name: strings.Repeat("a", MaxNameLength+1)}).ValidateBranding()
		s.Error(err)
	})

	s.Run("nil tenant is rejected", func() {
		var t *Tenant
		s.Error(t.ValidateBranding())
	})
}

func (s *TenantModelSuite) TestSlug() {
	s.Equal("acme", (&Tenant{ID: "acme"}).Slug())
	s.Equal("acme", (&Tenant{ID: "42", Schema: "acme"}).Slug())
	var t *Tenant
	s.Equal("", t.Slug())
}

func (s *TenantModelSuite) TestNormalizeSlug() {
	slug, ok := NormalizeSlug("  ACME ")
	s.True(ok)
	s.Equal("acme", slug)

	for _, bad := range []string{"", "ac-me", "acme.io", "ação", "a b"} {
		_, ok := NormalizeSlug(bad)
		s.False(ok, bad)
	}
}
