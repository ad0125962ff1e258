package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/service"
)

type PlanHandler struct {
	svc *service.PlanService
}

func NewPlanHandler(svc *service.PlanService) *PlanHandler {
	return &PlanHandler{svc: svc}
}

func (h *PlanHandler) Draft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"templateId"`
	}
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.NewDraft(r.Context(), actorOf(r), req.TemplateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) Rows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Op   service.RowOp `json:"op"`
		ID   string        `json:"id"`
		Plan *models.Plan  `json:"plan"`
	}
	if err := readJSON(r, &req); err != nil || req.Plan == nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.Rows(req.Plan, req.Op, req.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) Validate(w http.ResponseWriter, r *http.Request) {
	candidate, ok := readPlan(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Validate(r.Context(), actorOf(r), candidate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) Submit(w http.ResponseWriter, r *http.Request) {
	candidate, ok := readPlan(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Submit(r.Context(), actorOf(r), candidate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PlanHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	candidate, ok := readPlan(w, r)
	if !ok {
		return
	}
	candidate.ID = chi.URLParam(r, "planId")
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Resubmit(r.Context(), actorOf(r), candidate, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) Revalidate(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Revalidate(r.Context(), actorOf(r), chi.URLParam(r, "planId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision"`
		Comment  string `json:"comment"`
	}
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Review(r.Context(), actorOf(r), chi.URLParam(r, "planId"), req.Decision, req.Comment, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) Amend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Comment string `json:"comment"`
	}
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Amend(r.Context(), actorOf(r), chi.URLParam(r, "planId"), req.Comment, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Reopen(r.Context(), actorOf(r), chi.URLParam(r, "planId"), version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), actorOf(r), chi.URLParam(r, "planId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.ListMine(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *PlanHandler) Queue(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.Queue(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "planId")
	if err := h.svc.Delete(r.Context(), actorOf(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *PlanHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func readPlan(w http.ResponseWriter, r *http.Request) (*models.Plan, bool) {
	var p models.Plan
	if err := readJSON(r, &p); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &p, true
}
