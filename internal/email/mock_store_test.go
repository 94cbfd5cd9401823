package email

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/znz-systems/emailfilter/internal/models"
	"github.com/znz-systems/emailfilter/internal/store"
)

// mockEmailStore is an in-memory EmailStore honouring the same uniqueness
// and ordering rules as the postgres store.
type mockEmailStore struct {
	mu        sync.Mutex
	companies map[int64]bool
	emails    []models.Email
	nextID    int64

	createErr   error
	lookupErr   error
	searchCalls int
	lastQuery   models.EmailQuery
	createCalls int
}

func newMockEmailStore(companyIDs ...int64) *mockEmailStore {
	m := &mockEmailStore{companies: make(map[int64]bool), nextID: 1}
	for _, id := range companyIDs {
		m.companies[id] = true
	}
	return m
}

func (m *mockEmailStore) CreateEmails(_ context.Context, params []models.EmailCreateParams) ([]models.Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}

	seen := map[string]bool{}
	for _, e := range m.emails {
		seen[strings.ToLower(e.UniqueCode)] = true
	}
	for _, p := range params {
		key := strings.ToLower(p.UniqueCode)
		if seen[key] {
			return nil, &store.DuplicateError{Field: "unique_code", Value: key}
		}
		if !m.companies[p.CompanyID] {
			return nil, store.ErrCompanyMissing
		}
		seen[key] = true
	}

	created := make([]models.Email, 0, len(params))
	for _, p := range params {
		e := models.Email{
			ID:         m.nextID,
			PublicID:   uuid.New(),
			Recipient:  p.Recipient,
			Sender:     p.Sender,
			SentAt:     p.SentAt,
			CompanyID:  p.CompanyID,
			UniqueCode: p.UniqueCode,
			Content:    p.Content,
			CreatedAt:  time.Now(),
		}
		m.nextID++
		created = append(created, e)
	}
	m.emails = append(m.emails, created...)
	return created, nil
}

func (m *mockEmailStore) ExistingUniqueCodes(_ context.Context, codes []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	want := map[string]bool{}
	for _, c := range codes {
		want[strings.ToLower(c)] = true
	}
	found := map[string]bool{}
	for _, e := range m.emails {
		if key := strings.ToLower(e.UniqueCode); want[key] {
			found[key] = true
		}
	}
	return found, nil
}

func (m *mockEmailStore) ExistingCompanyIDs(_ context.Context, ids []int64) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := map[int64]bool{}
	for _, id := range ids {
		if m.companies[id] {
			found[id] = true
		}
	}
	return found, nil
}

func (m *mockEmailStore) SearchEmails(_ context.Context, q models.EmailQuery) ([]models.Email, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	m.lastQuery = q

	contains := func(haystack, needle string) bool {
		return needle == "" || strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	}

	var matched []models.Email
	for _, e := range m.emails {
		if !contains(e.Sender, q.Sender) || !contains(e.Recipient, q.Recipient) || !contains(e.Content, q.Content) {
			continue
		}
		if q.CompanyID != 0 && e.CompanyID != q.CompanyID {
			continue
		}
		if q.DayStart != nil && (e.SentAt.Before(*q.DayStart) || !e.SentAt.Before(*q.DayEnd)) {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].SentAt.Equal(matched[j].SentAt) {
			return matched[i].SentAt.After(matched[j].SentAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Offset >= total {
		return []models.Email{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return matched[q.Offset:end], total, nil
}

func (m *mockEmailStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emails)
}

type recordedQuery struct {
	endpoint, outcome string
}

type mockRecorder struct {
	mu       sync.Mutex
	ingested int
	rejected []string
	queries  []recordedQuery
}

func (r *mockRecorder) EmailsIngested(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingested += n
}

func (r *mockRecorder) BatchRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, reason)
}

func (r *mockRecorder) Query(endpoint, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, recordedQuery{endpoint, outcome})
}
