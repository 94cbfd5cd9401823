package handlers

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/znz-systems/emailfilter/internal/models"
	"github.com/znz-systems/emailfilter/internal/store"
)

// --- Shared mock stores used by the handler tests ---

type mockCompanyStore struct {
	companies map[int64]*models.Company
	nextID    int64
	listErr   error
}

func newMockCompanyStore() *mockCompanyStore {
	return &mockCompanyStore{companies: make(map[int64]*models.Company), nextID: 1}
}

func (m *mockCompanyStore) CreateCompany(_ context.Context, params models.CompanyCreateParams) (*models.Company, error) {
	c := &models.Company{
		ID:          m.nextID,
		PublicID:    uuid.New(),
		Name:        params.Name,
		Code:        params.Code,
		Description: params.Description,
		CreatedAt:   time.Now(),
	}
	m.nextID++
	m.companies[c.ID] = c
	return c, nil
}

func (m *mockCompanyStore) GetCompanyByID(_ context.Context, id int64) (*models.Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (m *mockCompanyStore) ListCompanies(_ context.Context, search string) ([]models.Company, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.Company, 0, len(m.companies))
	for _, c := range m.companies {
		if search == "" || strings.Contains(strings.ToLower(c.Name+" "+c.Code), strings.ToLower(search)) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCompanyStore) CompanyNameOrCodeTaken(_ context.Context, name, code string) (bool, bool, error) {
	var nameTaken, codeTaken bool
	for _, c := range m.companies {
		nameTaken = nameTaken || c.Name == name
		codeTaken = codeTaken || c.Code == code
	}
	return nameTaken, codeTaken, nil
}

type mockEmailStore struct {
	mu        sync.Mutex
	companies map[int64]bool
	emails    []models.Email
	nextID    int64
	createErr error
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
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, p := range params {
		if !m.companies[p.CompanyID] {
			return nil, store.ErrCompanyMissing
		}
	}
	created := make([]models.Email, 0, len(params))
	for _, p := range params {
		created = append(created, models.Email{
			ID:         m.nextID,
			PublicID:   uuid.New(),
			Recipient:  p.Recipient,
			Sender:     p.Sender,
			SentAt:     p.SentAt,
			CompanyID:  p.CompanyID,
			UniqueCode: p.UniqueCode,
			Content:    p.Content,
			CreatedAt:  time.Now(),
		})
		m.nextID++
	}
	m.emails = append(m.emails, created...)
	return created, nil
}

func (m *mockEmailStore) ExistingUniqueCodes(_ context.Context, codes []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := map[string]bool{}
	for _, c := range codes {
		for _, e := range m.emails {
			if strings.EqualFold(e.UniqueCode, c) {
				found[strings.ToLower(c)] = true
			}
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

// SearchEmails honours the sender and content filters, which is all the
// handler tests exercise.
func (m *mockEmailStore) SearchEmails(_ context.Context, q models.EmailQuery) ([]models.Email, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.Email
	for _, e := range m.emails {
		if strings.Contains(strings.ToLower(e.Sender), strings.ToLower(q.Sender)) &&
			strings.Contains(strings.ToLower(e.Content), strings.ToLower(q.Content)) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].SentAt.After(matched[j].SentAt) })

	total := len(matched)
	if q.Offset >= total {
		return []models.Email{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return matched[q.Offset:end], total, nil
}

type mockPinger struct {
	err error
}

func (p mockPinger) PingContext(context.Context) error { return p.err }
