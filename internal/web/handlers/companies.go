package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/znz-systems/emailfilter/internal/apperr"
	"github.com/znz-systems/emailfilter/internal/company"
)

// CompanyHandler serves the company catalog.
type CompanyHandler struct {
	companies    *company.Service
	maxBodyBytes int64
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(companies *company.Service, maxBodyBytes int64) *CompanyHandler {
	return &CompanyHandler{companies: companies, maxBodyBytes: maxBodyBytes}
}

type createCompanyRequest struct {
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Description *string `json:"description"`
}

// HandleList returns every company ordered by name, optionally narrowed by
// ?search=.
func (h *CompanyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	companies, err := h.companies.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

// HandleGet returns a single company.
func (h *CompanyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, apperr.ErrNotFound)
		return
	}

	c, err := h.companies.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleCreate registers a new company.
func (h *CompanyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if !decodeBody(w, r, h.maxBodyBytes, &req) {
		return
	}

	c, err := h.companies.Create(r.Context(), req.Name, req.Code, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
