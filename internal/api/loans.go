package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
	"github.com/gudangmitra/gudang/internal/workflow"
)

// LoansHandler handles equipment loan endpoints.
type LoansHandler struct {
	DB       *sqlx.DB
	Workflow *workflow.Service
	responder
}

type createLoanRequest struct {
	Purpose   string           `json:"purpose"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Items     []model.LineItem `json:"items"`
}

// parseDate accepts RFC 3339 timestamps and plain dates. An empty string
// yields the zero time.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Validationf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
}

// List handles GET /api/loans. Staff see every loan, everyone else only
// their own.
func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	f := store.LoanFilter{Status: r.URL.Query().Get("status")}
	if !actor.Staff() {
		f.BorrowerID = actor.ID
	}

	loans, err := store.ListLoans(r.Context(), h.DB, f)
	if err != nil {
		h.fail(w, r, "failed to list loans", err)
		return
	}
	ok(w, http.StatusOK, "", nonNil(loans))
}

// Create handles POST /api/loans.
func (h *LoansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.fail(w, r, "invalid start_date", err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.fail(w, r, "invalid end_date", err)
		return
	}

	loan, err := h.Workflow.CreateLoan(r.Context(), actorFrom(r), store.LoanInput{
		Purpose:   req.Purpose,
		StartDate: start,
		EndDate:   end,
		Items:     req.Items,
	})
	if err != nil {
		h.fail(w, r, "failed to create loan", err)
		return
	}

	slog.Info("loan created", "user", GetClaims(r.Context()).Email, "loan", loan.ID, "end_date", loan.EndDate)
	ok(w, http.StatusCreated, "loan created", loan)
}

// Get handles GET /api/loans/{id}.
func (h *LoansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	loan, err := store.GetLoan(r.Context(), h.DB, id)
	if err != nil {
		h.fail(w, r, "failed to get loan", err)
		return
	}
	if loan == nil {
		jsonError(w, http.StatusNotFound, "loan not found")
		return
	}
	if !actorFrom(r).CanView(loan.BorrowerID) {
		jsonError(w, http.StatusForbidden, "not your loan")
		return
	}

	ok(w, http.StatusOK, "", loan)
}

// UpdateStatus handles PATCH /api/loans/{id}/status.
func (h *LoansHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body statusRequest
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := h.Workflow.TransitionLoan(r.Context(), actorFrom(r), id, model.LoanStatus(body.Status))
	if err != nil {
		h.fail(w, r, "failed to update loan status", err)
		return
	}

	slog.Info("loan status changed", "user", GetClaims(r.Context()).Email, "loan", loan.ID, "status", loan.Status)
	ok(w, http.StatusOK, "loan "+string(loan.Status), loan)
}
