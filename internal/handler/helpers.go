package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/auth"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/service"
)

// maxBody caps request bodies; plans carry free text but never files.
const maxBody = 2 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError answers with the status matching err's class and its reason.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Default().Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	if status == http.StatusInternalServerError {
		writeMessage(w, status, "internal server error")
		return
	}
	writeMessage(w, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict
	}
	switch errs.ClassOf(err) {
	case errs.ClassValidation:
		return http.StatusBadRequest
	case errs.ClassTransition:
		return http.StatusConflict
	case errs.ClassAccessDenied:
		return http.StatusForbidden
	case errs.ClassNotFound:
		return http.StatusNotFound
	case errs.ClassDependency:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func actorOf(r *http.Request) models.Actor {
	a, _ := auth.GetActor(r.Context())
	return a
}

// expectedVersion reads the optional expectedVersion query parameter.
func expectedVersion(r *http.Request) (*int, error) {
	raw := r.URL.Query().Get("expectedVersion")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errs.Validation("expectedVersion", "not a number: %q", raw)
	}
	return &v, nil
}
