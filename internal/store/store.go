package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/znz-systems/emailfilter/internal/models"
)

// ErrCompanyMissing is returned when a write references a company row that
// does not exist (foreign key violation).
var ErrCompanyMissing = errors.New("referenced company does not exist")

// DuplicateError is returned when a write hits a unique constraint. Field is
// the logical field behind the constraint; Value is the conflicting value when
// the driver reports it.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("duplicate %s", e.Field)
	}
	return fmt.Sprintf("duplicate %s %q", e.Field, e.Value)
}

type CompanyStore interface {
	CreateCompany(ctx context.Context, params models.CompanyCreateParams) (*models.Company, error)
	GetCompanyByID(ctx context.Context, id int64) (*models.Company, error)
	ListCompanies(ctx context.Context, search string) ([]models.Company, error)
	CompanyNameOrCodeTaken(ctx context.Context, name, code string) (nameTaken, codeTaken bool, err error)
}

type EmailStore interface {
	// CreateEmails inserts all rows in one transaction; on error none persist.
	CreateEmails(ctx context.Context, params []models.EmailCreateParams) ([]models.Email, error)
	// ExistingUniqueCodes returns the lower-cased codes from codes that are
	// already stored, compared case-insensitively.
	ExistingUniqueCodes(ctx context.Context, codes []string) (map[string]bool, error)
	ExistingCompanyIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
	SearchEmails(ctx context.Context, query models.EmailQuery) ([]models.Email, int, error)
}
