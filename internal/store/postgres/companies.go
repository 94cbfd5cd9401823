package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/znz-systems/emailfilter/internal/models"
)

type CompanyStore struct {
	db *sql.DB
}

func NewCompanyStore(db *sql.DB) *CompanyStore {
	return &CompanyStore{db: db}
}

func (s *CompanyStore) CreateCompany(ctx context.Context, params models.CompanyCreateParams) (*models.Company, error) {
	company := &models.Company{
		PublicID:    uuid.New(),
		Name:        params.Name,
		Code:        params.Code,
		Description: params.Description,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO companies (public_id, name, code, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		company.PublicID, company.Name, company.Code, company.Description,
	).Scan(&company.ID, &company.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	return company, nil
}

func (s *CompanyStore) GetCompanyByID(ctx context.Context, id int64) (*models.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, public_id, name, code, description, created_at
		 FROM companies WHERE id = $1`,
		id,
	)
	return scanCompany(row)
}

func (s *CompanyStore) ListCompanies(ctx context.Context, search string) ([]models.Company, error) {
	var (
		query = `SELECT id, public_id, name, code, description, created_at FROM companies`
		args  []interface{}
	)
	if search = strings.TrimSpace(search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		query += ` WHERE name ILIKE $1 OR code ILIKE $1`
	}
	query += ` ORDER BY name COLLATE "C" ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := make([]models.Company, 0, 16)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}

func (s *CompanyStore) CompanyNameOrCodeTaken(ctx context.Context, name, code string) (bool, bool, error) {
	var nameTaken, codeTaken bool
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   EXISTS (SELECT 1 FROM companies WHERE name = $1),
		   EXISTS (SELECT 1 FROM companies WHERE code = $2)`,
		name, code,
	).Scan(&nameTaken, &codeTaken)
	if err != nil {
		return false, false, err
	}
	return nameTaken, codeTaken, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompany(scanner rowScanner) (*models.Company, error) {
	var (
		c    models.Company
		desc sql.NullString
	)
	if err := scanner.Scan(&c.ID, &c.PublicID, &c.Name, &c.Code, &desc, &c.CreatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		c.Description = &desc.String
	}
	return &c, nil
}
