package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-tracking-service/internal/model"
)

func authServer(t *testing.T, status int, user AuthUser) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/current", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(user)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateToken(t *testing.T) {
	srv := authServer(t, http.StatusOK, AuthUser{ID: "u1", Name: "Ana", Permissions: []string{"user"}, Enabled: true})
	auth := NewAuthService(srv.URL + "/")

	caller, err := auth.ValidateToken(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", caller.ID)
	assert.Equal(t, "Ana", caller.Name)
	assert.False(t, caller.IsAdmin())
	assert.False(t, caller.System)
}

func TestValidateToken_Rejected(t *testing.T) {
	srv := authServer(t, http.StatusOK, AuthUser{ID: "u1", Enabled: true})
	auth := NewAuthService(srv.URL)

	_, err := auth.ValidateToken(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = auth.ValidateToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_DisabledUser(t *testing.T) {
	srv := authServer(t, http.StatusOK, AuthUser{ID: "u1", Enabled: false})
	auth := NewAuthService(srv.URL)

	_, err := auth.ValidateToken(context.Background(), "good-token")
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestValidateToken_MissingUserID(t *testing.T) {
	srv := authServer(t, http.StatusOK, AuthUser{Enabled: true})
	auth := NewAuthService(srv.URL)

	_, err := auth.ValidateToken(context.Background(), "good-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_AuthServiceDown(t *testing.T) {
	srv := authServer(t, http.StatusOK, AuthUser{})
	srv.Close()
	auth := NewAuthService(srv.URL)

	_, err := auth.ValidateToken(context.Background(), "good-token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestCallerCanAccess(t *testing.T) {
	mine := &model.Order{UserID: "u1"}
	guest := &model.Order{}

	assert.True(t, owner.CanAccess(mine))
	assert.True(t, owner.CanAccess(guest))
	assert.False(t, (&Caller{ID: "u2"}).CanAccess(mine))
	assert.True(t, (&Caller{ID: "u2", Permissions: []string{"admin"}}).CanAccess(mine))
	assert.True(t, SystemCaller("simulator").CanAccess(mine))

	var nobody *Caller
	assert.False(t, nobody.CanAccess(mine))
}

func TestCallerCanModify(t *testing.T) {
	mine := &model.Order{UserID: "u1"}
	guest := &model.Order{}

	assert.True(t, owner.CanModify(mine))
	assert.False(t, owner.CanModify(guest))
	assert.False(t, (&Caller{ID: "u2"}).CanModify(mine))
	assert.True(t, (&Caller{ID: "u2", Permissions: []string{"admin"}}).CanModify(guest))
	assert.True(t, SystemCaller("rabbit").CanModify(guest))

	var nobody *Caller
	assert.False(t, nobody.CanModify(guest))
}
