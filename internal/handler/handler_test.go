package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/auth"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/blob"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/service"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/store"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errs.Validation("f", "bad"), http.StatusBadRequest},
		{"transition", errs.Transition("draft", "approved", "no"), http.StatusConflict},
		{"refused transition", errs.RefusedTransition("submitted", "approved", errs.Denied("teacher", "not a reviewer")), http.StatusConflict},
		{"denied", errs.Denied("teacher", "no"), http.StatusForbidden},
		{"not found", fmt.Errorf("plan p1: %w", errs.ErrNotFound), http.StatusNotFound},
		{"unavailable", errs.Unavailable("blob store", errors.New("timeout")), http.StatusServiceUnavailable},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"email taken", service.ErrEmailTaken, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}

func TestWriteErrorHidesInternalReason(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("secret detail"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")

	rec = httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errs.Validation("title", "too short"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid input: title: too short", body["error"])
}

func TestExpectedVersion(t *testing.T) {
	v, err := expectedVersion(httptest.NewRequest(http.MethodPost, "/p", nil))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = expectedVersion(httptest.NewRequest(http.MethodPost, "/p?expectedVersion=3", nil))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 3, *v)

	_, err = expectedVersion(httptest.NewRequest(http.MethodPost, "/p?expectedVersion=x", nil))
	assert.True(t, errs.IsValidation(err))
}

func as(r *http.Request, a models.Actor) *http.Request {
	return r.WithContext(auth.WithActor(r.Context(), a))
}

func TestBlobDownloadAccess(t *testing.T) {
	blobs := blob.NewMemory("http://plans.local")
	_, err := blobs.Upload(context.Background(), "plans/t1/1.txt", []byte("rapport"), "text/plain")
	require.NoError(t, err)

	r := chi.NewRouter()
	h := NewBlobHandler(blobs)
	var actor models.Actor
	r.Get("/blobs/*", func(w http.ResponseWriter, req *http.Request) {
		h.Download(w, as(req, actor))
	})

	tests := []struct {
		name  string
		actor models.Actor
		path  string
		want  int
	}{
		{"author", models.Actor{UserID: "t1", Role: models.RoleTeacher}, "/blobs/plans/t1/1.txt", http.StatusOK},
		{"other author", models.Actor{UserID: "t2", Role: models.RoleTeacher}, "/blobs/plans/t1/1.txt", http.StatusForbidden},
		{"reviewer", models.Actor{UserID: "r1", Role: models.RoleReviewer}, "/blobs/plans/t1/1.txt", http.StatusOK},
		{"missing", models.Actor{UserID: "t1", Role: models.RoleTeacher}, "/blobs/plans/t1/2.txt", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor = tt.actor
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "rapport", rec.Body.String())
				assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestTemplateCreateRefusedForTeacher(t *testing.T) {
	h := NewTemplateHandler(service.NewTemplateService(store.NewMemory(), service.MultiActive, nil))
	body := `{"templateName":"Plan","metaFields":[{"label":"Titre"}]}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/templates", strings.NewReader(body))
	h.Create(rec, as(req, models.Actor{UserID: "t1", Role: models.RoleTeacher}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/templates", strings.NewReader(body))
	h.Create(rec, as(req, models.Actor{UserID: "c1", Role: models.RoleCoordinator}))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var tpl models.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tpl))
	assert.Equal(t, "titre", tpl.MetaFields[0].Key)
	assert.Equal(t, "c1", tpl.CreatorID)
}

func TestBadBody(t *testing.T) {
	h := NewPlanHandler(nil)
	rec := httptest.NewRecorder()
	h.Validate(rec, httptest.NewRequest(http.MethodPost, "/plans/validate", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
