package api

import (
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/store"
)

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	DB *sqlx.DB
	responder
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListCategories(r.Context(), h.DB)
	if err != nil {
		h.fail(w, r, "failed to list categories", err)
		return
	}
	ok(w, http.StatusOK, "", nonNil(categories))
}

// Create handles POST /api/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := store.CreateCategory(r.Context(), h.DB, req.Name, req.Description)
	if err != nil {
		h.fail(w, r, "failed to create category", err)
		return
	}

	slog.Info("category created", "user", GetClaims(r.Context()).Email, "category", c.Name)
	ok(w, http.StatusCreated, "category created", c)
}

// Update handles PUT /api/categories/{id}.
func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(r)
	if !valid {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := store.UpdateCategory(r.Context(), h.DB, id, req.Name, req.Description)
	if err != nil {
		h.fail(w, r, "failed to update category", err)
		return
	}
	ok(w, http.StatusOK, "category updated", c)
}

// Delete handles DELETE /api/categories/{id}.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(r)
	if !valid {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := store.DeleteCategory(r.Context(), h.DB, id); err != nil {
		h.fail(w, r, "failed to delete category", err)
		return
	}

	slog.Info("category deleted", "user", GetClaims(r.Context()).Email, "category_id", id)
	ok(w, http.StatusOK, "category deleted", nil)
}
