package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	authmodels "meridian/internal/auth/models"
	"meridian/internal/credentials/storage"
	"meridian/internal/credentials/storage/mocks"
	"meridian/internal/sentinel"
	tenant "meridian/internal/tenant/models"
)

type StoreSuite struct {
	suite.Suite
	ctx     context.Context
	backing *storage.Memory
	store   *Store
	now     time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.backing = storage.NewMemory()
	s.store = New(s.backing, WithClock(func() time.Time { return s.now }))
}

func (s *StoreSuite) signedToken(exp time.Time) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-7",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	s.Require().NoError(err)
	return token
}

func (s *StoreSuite) seed(values map[string]string) {
	s.Require().NoError(s.backing.Write(s.ctx, storage.Batch{Put: values}))
}

func (s *StoreSuite) TestInit() {
	s.Run("empty storage is unauthenticated without error", func() {
		s.SetupTest()
		s.Require().NoError(s.store.Init(s.ctx))
		s.False(s.store.Authenticated())
		s.Empty(s.store.TenantID())
	})

	s.Run("loads every key", func() {
		s.SetupTest()
		s.seed(map[string]string{
			KeyToken:    "opaque-token",
			KeyTenantID: "acme",
			KeyUser:     `{"id":"7","email":"admin@acme.io"}`,
			KeyTenant:   `{"id":"acme","name":"Acme"}`,
		})

		s.Require().NoError(s.store.Init(s.ctx))
		snap := s.store.Snapshot()
		s.True(snap.Authenticated())
		s.Equal("opaque-token", snap.Token)
		s.Equal("acme", snap.TenantID)
		s.Equal("admin@acme.io", snap.User.Email)
		s.Equal("Acme", snap.Tenant.Name)
		s.True(snap.ExpiresAt.IsZero(), "opaque tokens carry no expiry")
	})

	s.Run("token without tenant is still authenticated", func() {
		s.SetupTest()
		s.seed(map[string]string{KeyToken: "opaque-token"})
		s.Require().NoError(s.store.Init(s.ctx))
		s.True(s.store.Authenticated())
		s.Empty(s.store.TenantID())
	})

	s.Run("corrupt user data clears everything", func() {
		s.SetupTest()
		s.seed(map[string]string{
			KeyToken:    "opaque-token",
			KeyTenantID: "acme",
			KeyUser:     "{not json",
		})

		s.Require().NoError(s.store.Init(s.ctx))
		s.False(s.store.Authenticated())
		s.Empty(s.backing.Keys())
	})

	s.Run("expired jwt is dropped but tenant kept", func() {
		s.SetupTest()
		s.seed(map[string]string{
			KeyToken:    s.signedToken(s.now.Add(-time.Minute)),
			KeyTenantID: "acme",
		})

		s.Require().NoError(s.store.Init(s.ctx))
		s.False(s.store.Authenticated())
		s.Equal("acme", s.store.TenantID())
		s.Equal([]string{KeyTenantID}, s.backing.Keys())
	})

	s.Run("live jwt exposes expiry", func() {
		s.SetupTest()
		exp := s.now.Add(15 * time.Minute)
		s.seed(map[string]string{KeyToken: s.signedToken(exp)})

		s.Require().NoError(s.store.Init(s.ctx))
		s.True(s.store.Authenticated())
		s.True(exp.Equal(s.store.ExpiresAt()))
	})
}

func (s *StoreSuite) TestSetCredentials() {
	s.Run("writes through to storage", func() {
		s.SetupTest()
		err := s.store.SetCredentials(s.ctx, "tok",
			&tenant.Tenant{ID: "acme", Name: "Acme"},
			&authmodels.User{ID: "7", Email: "admin@acme.io"})
		s.Require().NoError(err)

		s.Equal("tok", s.store.Token())
		s.Equal("acme", s.store.TenantID())
		s.ElementsMatch(AllKeys, s.backing.Keys())

		stored, err := s.backing.Get(s.ctx, KeyToken)
		s.Require().NoError(err)
		s.Equal("tok", stored)
	})

	s.Run("missing tenant keeps the resolved tenant id", func() {
		s.SetupTest()
		s.Require().NoError(s.store.SetTenantID(s.ctx, "acme"))
		s.Require().NoError(s.store.SetCredentials(s.ctx, "tok", nil, nil))
		s.Equal("acme", s.store.TenantID())
	})

	s.Run("empty token is rejected", func() {
		s.SetupTest()
		s.Error(s.store.SetCredentials(s.ctx, "", nil, nil))
	})
}

func (s *StoreSuite) TestClear() {
	s.Run("set then clear leaves no keys", func() {
		s.SetupTest()
		s.Require().NoError(s.store.SetCredentials(s.ctx, "tok",
			&tenant.Tenant{ID: "acme", Name: "Acme"},
			&authmodels.User{ID: "7"}))

		s.Require().NoError(s.store.Clear(s.ctx))

		s.False(s.store.Authenticated())
		s.Nil(s.store.Tenant())
		s.Nil(s.store.User())
		for _, key := range AllKeys {
			_, err := s.backing.Get(s.ctx, key)
			s.ErrorIs(err, sentinel.ErrNotFound, key)
		}
	})

	s.Run("clear token keeps tenant", func() {
		s.SetupTest()
		s.Require().NoError(s.store.SetCredentials(s.ctx, "tok", &tenant.Tenant{ID: "acme", Name: "Acme"}, nil))

		s.Require().NoError(s.store.ClearToken(s.ctx))

		s.Empty(s.store.Token())
		s.Equal("acme", s.store.TenantID())
		_, err := s.backing.Get(s.ctx, KeyToken)
		s.ErrorIs(err, sentinel.ErrNotFound)
		v, err := s.backing.Get(s.ctx, KeyTenantID)
		s.Require().NoError(err)
		s.Equal("acme", v)
	})
}

func (s *StoreSuite) TestTenantSlot() {
	s.Require().NoError(s.store.SetTenant(s.ctx, &tenant.Tenant{ID: "acme", Name: "Acme"}))
	s.Equal("Acme", s.store.Tenant().Name)

	s.Require().NoError(s.store.SetTenant(s.ctx, nil))
	s.Nil(s.store.Tenant())
	_, err := s.backing.Get(s.ctx, KeyTenant)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.SetTenantID(s.ctx, ""))
	s.Empty(s.store.TenantID())
}

// Storage failures must leave memory untouched so the mirror never diverges.
func (s *StoreSuite) TestStorageFailures() {
	ctrl := gomock.NewController(s.T())
	mockStorage := mocks.NewMockStorage(ctrl)
	store := New(mockStorage)

	s.Run("failed write keeps memory unchanged", func() {
		mockStorage.EXPECT().Write(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

		err := store.SetCredentials(s.ctx, "tok", nil, nil)
		s.Error(err)
		s.False(store.Authenticated())
	})

	s.Run("read failure surfaces from init", func() {
		mockStorage.EXPECT().Get(gomock.Any(), KeyToken).Return("", errors.New("io error"))

		s.Error(store.Init(s.ctx))
	})

	s.Run("failed clear keeps the token", func() {
		mockStorage.EXPECT().Write(gomock.Any(), gomock.Any()).Return(nil)
		s.Require().NoError(store.SetCredentials(s.ctx, "tok", nil, nil))

		mockStorage.EXPECT().
			Write(gomock.Any(), storage.Batch{Delete: AllKeys}).
			Return(errors.New("locked"))
		s.Error(store.Clear(s.ctx))
		s.Equal("tok", store.Token())
	})
}
