package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/lib/pq"
	"github.com/znz-systems/emailfilter/internal/store"
)

func NewDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Retry connecting, postgres may still be starting in Docker
	var pingErr error
	for attempt := 1; attempt <= 5; attempt++ {
		pingErr = db.Ping()
		if pingErr == nil {
			break
		}
		slog.Warn("database not ready, retrying", "attempt", attempt, "error", pingErr)
		time.Sleep(2 * time.Second)
	}
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database after 5 attempts: %w", pingErr)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	return db, nil
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// constraintFields maps unique constraint names from the migrations to the
// API field they protect.
var constraintFields = map[string]string{
	"companies_name_key":           "name",
	"companies_code_key":           "code",
	"emails_unique_code_lower_idx": "unique_code",
}

// detailValue pulls the conflicting value out of a pq detail message such as
// `Key (lower(unique_code::text))=(x1) already exists.`
var detailValue = regexp.MustCompile(`\)=\((.*)\) already exists`)

// mapError translates driver errors into store errors. Errors it does not
// recognise are returned unchanged.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeUniqueViolation:
		dup := &store.DuplicateError{Field: constraintFields[pqErr.Constraint]}
		if dup.Field == "" {
			dup.Field = pqErr.Constraint
		}
		if m := detailValue.FindStringSubmatch(pqErr.Detail); m != nil {
			dup.Value = m[1]
		}
		return dup
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", store.ErrCompanyMissing, pqErr.Detail)
	}
	return err
}
