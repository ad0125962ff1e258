package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

type roleMap map[string]models.Role

func (m roleMap) Role(_ context.Context, id string) (models.Role, error) {
	if id == "down" {
		return models.RoleUnknown, errs.Unavailable("store", assert.AnError)
	}
	r, ok := m[id]
	if !ok {
		return models.RoleUnknown, errs.ErrNotFound
	}
	return r, nil
}

func TestToken(t *testing.T) {
	tok, err := GenerateToken("s3cret", "u1", "a@x.org")
	require.NoError(t, err)

	claims, err := ValidateToken("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	_, err = ValidateToken("other", tok)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.True(t, CheckPassword("pw", hash))
	assert.False(t, CheckPassword("nope", hash))
}

func TestMiddleware(t *testing.T) {
	roles := roleMap{"u1": models.RoleReviewer}
	var got models.Actor
	h := Middleware("s3cret", roles, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetActor(r.Context())
	}))

	tok := func(id string) string {
		s, err := GenerateToken("s3cret", id, id+"@x.org")
		require.NoError(t, err)
		return "Bearer " + s
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer xyz", http.StatusUnauthorized},
		{"unknown profile", tok("ghost"), http.StatusUnauthorized},
		{"profile store down", tok("down"), http.StatusServiceUnavailable},
		{"ok", tok("u1"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, models.Actor{UserID: "u1", Role: models.RoleReviewer}, got)
}

func TestDeriveKey(t *testing.T) {
	a := DeriveKey("secret", "digest")
	assert.Len(t, a, 32)
	assert.Equal(t, a, DeriveKey("secret", "digest"))
	assert.NotEqual(t, a, DeriveKey("secret", "other"))
	assert.NotEqual(t, a, DeriveKey("secret2", "digest"))
}
