package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/imaging"
	"github.com/gudangmitra/gudang/internal/ledger"
	"github.com/gudangmitra/gudang/internal/store"
)

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	DB *sqlx.DB
	responder
}

// itemRequest is the body of item create and update calls. Absent fields
// keep their current value on update; a category_id of 0 clears it.
type itemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	CategoryID  *int64  `json:"category_id"`
	Unit        *string `json:"unit"`
	Quantity    *int    `json:"quantity"`
	MinQuantity *int    `json:"min_quantity"`
}

func categoryRef(id *int64) *int64 {
	if id == nil || *id <= 0 {
		return nil
	}
	return id
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ItemFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		f.CategoryID = id
	}
	if f.Status != "" && !ledger.Status(f.Status).Valid() {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, f)
	if err != nil {
		h.fail(w, r, "failed to list items", err)
		return
	}
	ok(w, http.StatusOK, "", nonNil(items))
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, store.ItemInput{
		Name:        deref(req.Name, ""),
		Description: deref(req.Description, ""),
		CategoryID:  categoryRef(req.CategoryID),
		Unit:        deref(req.Unit, ""),
		Quantity:    deref(req.Quantity, 0),
		MinQuantity: deref(req.MinQuantity, 0),
	})
	if err != nil {
		h.fail(w, r, "failed to create item", err)
		return
	}

	slog.Info("item created", "user", GetClaims(r.Context()).Email, "item", item.Name, "quantity", item.Quantity)
	ok(w, http.StatusCreated, "item created", item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(r)
	if !valid {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		h.fail(w, r, "failed to get item", err)
		return
	}
	if item == nil || !item.IsActive {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	ok(w, http.StatusOK, "", item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(r)
	if !valid {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cur, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		h.fail(w, r, "failed to update item", err)
		return
	}
	if cur == nil || !cur.IsActive {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	category := cur.CategoryID
	if req.CategoryID != nil {
		category = categoryRef(req.CategoryID)
	}

	item, err := store.UpdateItem(r.Context(), h.DB, id, store.ItemUpdate{
		Name:        deref(req.Name, cur.Name),
		Description: deref(req.Description, cur.Description),
		CategoryID:  category,
		Unit:        deref(req.Unit, cur.Unit),
		MinQuantity: deref(req.MinQuantity, cur.MinQuantity),
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.fail(w, r, "failed to update item", err)
		return
	}

	slog.Info("item updated", "user", GetClaims(r.Context()).Email, "item", item.Name, "status", item.Status)
	ok(w, http.StatusOK, "item updated", item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(r)
	if !valid {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		h.fail(w, r, "failed to delete item", err)
		return
	}

	slog.Info("item deleted", "user", GetClaims(r.Context()).Email, "item_id", id)
	ok(w, http.StatusOK, "item deleted", nil)
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(r)
	if !valid {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	// Leave room for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Normalize(file)
	if err != nil {
		h.fail(w, r, "failed to process image", err)
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		h.fail(w, r, "failed to save image", err)
		return
	}

	ok(w, http.StatusOK, "image uploaded", map[string]int{"width": photo.Width, "height": photo.Height})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(r)
	if !valid {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		h.fail(w, r, "failed to get image", err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
