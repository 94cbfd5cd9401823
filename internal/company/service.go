package company

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/znz-systems/emailfilter/internal/apperr"
	"github.com/znz-systems/emailfilter/internal/models"
	"github.com/znz-systems/emailfilter/internal/store"
)

// Service manages the catalog of sender companies.
type Service struct {
	companies store.CompanyStore
}

// NewService creates a new company Service.
func NewService(companies store.CompanyStore) *Service {
	return &Service{companies: companies}
}

// List returns companies ordered by name. A non-empty search narrows the
// result to companies whose name or code contains it, ignoring case.
func (s *Service) List(ctx context.Context, search string) ([]models.Company, error) {
	companies, err := s.companies.ListCompanies(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", errors.Join(apperr.ErrPersistence, err))
	}
	return companies, nil
}

// Get returns a single company by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.Company, error) {
	c, err := s.companies.GetCompanyByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get company: %w", errors.Join(apperr.ErrPersistence, err))
	}
	return c, nil
}

// Create validates and stores a new company. Name and code must each be
// unique; a clash is reported as a ConflictError on the offending field.
func (s *Service) Create(ctx context.Context, name, code string, description *string) (*models.Company, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)

	fields := apperr.FieldErrors{}
	checkRequired(fields, "name", name, models.MaxCompanyNameLength)
	checkRequired(fields, "code", code, models.MaxCompanyCodeLength)
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	nameTaken, codeTaken, err := s.companies.CompanyNameOrCodeTaken(ctx, name, code)
	if err != nil {
		return nil, fmt.Errorf("check company uniqueness: %w", errors.Join(apperr.ErrPersistence, err))
	}
	if nameTaken {
		fields.Add("name", "a company with this name already exists")
	}
	if codeTaken {
		fields.Add("code", "a company with this code already exists")
	}
	if len(fields) > 0 {
		return nil, &apperr.ConflictError{Fields: fields}
	}

	c, err := s.companies.CreateCompany(ctx, models.CompanyCreateParams{
		Name:        name,
		Code:        code,
		Description: description,
	})
	if err != nil {
		// Lost a race with a concurrent create.
		var dup *store.DuplicateError
		if errors.As(err, &dup) {
			return nil, apperr.Conflict(dup.Field, fmt.Sprintf("a company with this %s already exists", dup.Field))
		}
		return nil, fmt.Errorf("create company: %w", errors.Join(apperr.ErrPersistence, err))
	}
	return c, nil
}

func checkRequired(fields apperr.FieldErrors, field, value string, max int) {
	switch {
	case value == "":
		fields.Add(field, field+" is required")
	case utf8.RuneCountInString(value) > max:
		fields.Add(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
}
