package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/service"
)

type TemplateHandler struct {
	svc *service.TemplateService
}

func NewTemplateHandler(svc *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.svc.List(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TemplateHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	templates, err := h.svc.Catalog(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.TemplateInput
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := h.svc.Create(r.Context(), actorOf(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), actorOf(r), chi.URLParam(r, "templateId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.TemplateInput
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := h.svc.Update(r.Context(), actorOf(r), chi.URLParam(r, "templateId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "templateId")
	if err := h.svc.Delete(r.Context(), actorOf(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *TemplateHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *TemplateHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *TemplateHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	t, err := h.svc.SetActive(r.Context(), actorOf(r), chi.URLParam(r, "templateId"), active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
