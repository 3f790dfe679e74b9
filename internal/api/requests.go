package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
	"github.com/gudangmitra/gudang/internal/workflow"
)

// RequestsHandler handles item request endpoints.
type RequestsHandler struct {
	DB       *sqlx.DB
	Workflow *workflow.Service
	responder
}

type createRequestRequest struct {
	Reason string           `json:"reason"`
	Items  []model.LineItem `json:"items"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/requests. Staff see every request, everyone else
// only their own.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	f := store.RequestFilter{Status: r.URL.Query().Get("status")}
	if !actor.Staff() {
		f.RequesterID = actor.ID
	}

	requests, err := store.ListRequests(r.Context(), h.DB, f)
	if err != nil {
		h.fail(w, r, "failed to list requests", err)
		return
	}
	ok(w, http.StatusOK, "", nonNil(requests))
}

// Create handles POST /api/requests.
func (h *RequestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFrom(r)
	created, err := h.Workflow.CreateRequest(r.Context(), actor, req.Reason, req.Items)
	if err != nil {
		h.fail(w, r, "failed to create request", err)
		return
	}

	slog.Info("request created", "user", GetClaims(r.Context()).Email, "request", created.ID, "lines", len(created.Items))
	ok(w, http.StatusCreated, "request created", created)
}

// Get handles GET /api/requests/{id}.
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := store.GetRequest(r.Context(), h.DB, id)
	if err != nil {
		h.fail(w, r, "failed to get request", err)
		return
	}
	if req == nil {
		jsonError(w, http.StatusNotFound, "request not found")
		return
	}
	if !actorFrom(r).CanView(req.RequesterID) {
		jsonError(w, http.StatusForbidden, "not your request")
		return
	}

	ok(w, http.StatusOK, "", req)
}

// UpdateStatus handles PATCH /api/requests/{id}/status.
func (h *RequestsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body statusRequest
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.Workflow.TransitionRequest(r.Context(), actorFrom(r), id, model.RequestStatus(body.Status))
	if err != nil {
		h.fail(w, r, "failed to update request status", err)
		return
	}

	slog.Info("request status changed", "user", GetClaims(r.Context()).Email, "request", updated.ID, "status", updated.Status)
	ok(w, http.StatusOK, "request "+string(updated.Status), updated)
}

// Delete handles DELETE /api/requests/{id}.
func (h *RequestsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Workflow.DeleteRequest(r.Context(), actorFrom(r), id); err != nil {
		h.fail(w, r, "failed to delete request", err)
		return
	}

	slog.Info("request deleted", "user", GetClaims(r.Context()).Email, "request", id)
	ok(w, http.StatusOK, "request deleted", nil)
}
