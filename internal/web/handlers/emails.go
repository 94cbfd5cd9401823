package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/znz-systems/emailfilter/internal/apperr"
	"github.com/znz-systems/emailfilter/internal/email"
	"github.com/znz-systems/emailfilter/internal/models"
)

// EmailHandler serves bulk ingestion and the filtered email queries.
type EmailHandler struct {
	emails       *email.Service
	baseURL      string
	maxBodyBytes int64
}

// NewEmailHandler creates a new EmailHandler. baseURL, when set, is used as
// the scheme and host of pagination links instead of the request's own.
func NewEmailHandler(emails *email.Service, baseURL string, maxBodyBytes int64) *EmailHandler {
	return &EmailHandler{emails: emails, baseURL: baseURL, maxBodyBytes: maxBodyBytes}
}

// pageResponse is the paginated list envelope.
type pageResponse struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []models.Email `json:"results"`
}

// HandleCreate stores one email or a batch of emails. A JSON object yields a
// single record (or a single item error); an array yields a list.
func (h *EmailHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decodeBody(w, r, h.maxBodyBytes, &raw) {
		return
	}

	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	single := len(trimmed) > 0 && trimmed[0] == '{'
	if !single && (len(trimmed) == 0 || trimmed[0] != '[') {
		writeError(w, r, apperr.Validation("non_field_errors", "expected an email object or a list of email objects"))
		return
	}

	var items []email.Input
	if single {
		items = []email.Input{email.DecodeInput(raw)}
	} else {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			writeError(w, r, apperr.Validation("non_field_errors", "request body must be valid JSON"))
			return
		}
		items = make([]email.Input, len(elems))
		for i, elem := range elems {
			items[i] = email.DecodeInput(elem)
		}
	}

	created, err := h.emails.CreateBatch(r.Context(), items)
	if err != nil {
		var bErr *apperr.BatchError
		if !errors.As(err, &bErr) {
			writeError(w, r, err)
			return
		}
		status := http.StatusBadRequest
		if bErr.ConflictOnly() {
			status = http.StatusConflict
		}
		if single {
			writeJSON(w, status, bErr.Items[0])
			return
		}
		writeJSON(w, status, bErr.Items)
		return
	}

	if single {
		writeJSON(w, http.StatusCreated, created[0])
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleList runs the general filtered query. Without any filter the
// result is always empty.
func (h *EmailHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, h.emails.List)
}

// HandleSearch runs the content search. Without ?content= the result is
// always empty.
func (h *EmailHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, h.emails.Search)
}

type queryFunc func(ctx context.Context, f email.Filter, page int) (models.EmailPage, error)

func (h *EmailHandler) query(w http.ResponseWriter, r *http.Request, run queryFunc) {
	values := r.URL.Query()

	f, err := email.ParseFilter(values, h.emails.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := email.ParsePage(values.Get("page"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := run(r.Context(), f, page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := pageResponse{Count: result.Total, Results: result.Items}
	if result.HasNext() {
		next := h.pageURL(r, result.Page+1)
		resp.Next = &next
	}
	if result.HasPrevious() {
		prev := h.pageURL(r, result.Page-1)
		resp.Previous = &prev
	}
	writeJSON(w, http.StatusOK, resp)
}

// pageURL rebuilds the request URL with page replaced. Page 1 drops the
// parameter entirely.
func (h *EmailHandler) pageURL(r *http.Request, page int) string {
	base := h.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}

	values := r.URL.Query()
	if page <= 1 {
		values.Del("page")
	} else {
		values.Set("page", strconv.Itoa(page))
	}

	u := url.URL{Path: r.URL.Path, RawQuery: values.Encode()}
	return base + u.String()
}
