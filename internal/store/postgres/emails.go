package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/znz-systems/emailfilter/internal/models"
)

type EmailStore struct {
	db *sql.DB
}

func NewEmailStore(db *sql.DB) *EmailStore {
	return &EmailStore{db: db}
}

const emailColumns = `id, public_id, recipient, sender, sent_at, company_id, unique_code, content, created_at`

// CreateEmails inserts every row inside a single transaction. The first
// failing insert aborts the transaction and nothing is kept.
func (s *EmailStore) CreateEmails(ctx context.Context, params []models.EmailCreateParams) ([]models.Email, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO emails (public_id, recipient, sender, sent_at, company_id, unique_code, content)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	emails := make([]models.Email, 0, len(params))
	for i, p := range params {
		email := models.Email{
			PublicID:   uuid.New(),
			Recipient:  p.Recipient,
			Sender:     p.Sender,
			SentAt:     p.SentAt,
			CompanyID:  p.CompanyID,
			UniqueCode: p.UniqueCode,
			Content:    p.Content,
		}
		err := stmt.QueryRowContext(ctx,
			email.PublicID, email.Recipient, email.Sender, email.SentAt,
			email.CompanyID, email.UniqueCode, email.Content,
		).Scan(&email.ID, &email.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert email %d: %w", i, mapError(err))
		}
		emails = append(emails, email)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	return emails, nil
}

// existingCodesQuery returns the submitted codes that collide with a stored
// one. Both sides go through LOWER() so the comparison matches
// emails_unique_code_lower_idx.
const existingCodesQuery = `SELECT DISTINCT c.code
	FROM unnest($1::text[]) AS c(code)
	WHERE EXISTS (SELECT 1 FROM emails e WHERE LOWER(e.unique_code) = LOWER(c.code))`

// ExistingUniqueCodes reports which of codes are already stored. Keys are the
// submitted codes lower-cased with strings.ToLower, matching the service's
// in-batch check.
func (s *EmailStore) ExistingUniqueCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	found := make(map[string]bool, len(codes))
	if len(codes) == 0 {
		return found, nil
	}

	rows, err := s.db.QueryContext(ctx, existingCodesQuery, pq.Array(codes))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		found[strings.ToLower(code)] = true
	}
	return found, rows.Err()
}

func (s *EmailStore) ExistingCompanyIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	found := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM companies WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

// SearchEmails runs the count and the page query inside one read-only
// transaction so both see the same snapshot.
func (s *EmailStore) SearchEmails(ctx context.Context, query models.EmailQuery) ([]models.Email, int, error) {
	where, args := buildEmailWhere(query)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	emails := make([]models.Email, 0, limit)
	if total == 0 || offset >= total {
		return emails, total, tx.Commit()
	}

	pageArgs := append(args, limit, offset)
	rows, err := tx.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails`+where+
			` ORDER BY sent_at DESC, id ASC LIMIT $`+itoa(len(pageArgs)-1)+` OFFSET $`+itoa(len(pageArgs)),
		pageArgs...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, 0, err
		}
		emails = append(emails, *email)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return emails, total, tx.Commit()
}

// buildEmailWhere assembles the WHERE clause for q. Present filters are
// combined with AND; an all-zero query yields an empty clause.
func buildEmailWhere(q models.EmailQuery) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+itoa(len(args))))
	}

	if q.Sender != "" {
		add("sender ILIKE ?", "%"+escapeLike(q.Sender)+"%")
	}
	if q.Recipient != "" {
		add("recipient ILIKE ?", "%"+escapeLike(q.Recipient)+"%")
	}
	if q.CompanyID != 0 {
		add("company_id = ?", q.CompanyID)
	}
	if q.DayStart != nil && q.DayEnd != nil {
		add("sent_at >= ?", *q.DayStart)
		add("sent_at < ?", *q.DayEnd)
	}
	if q.Content != "" {
		add("content ILIKE ?", "%"+escapeLike(q.Content)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralises LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanEmail(scanner rowScanner) (*models.Email, error) {
	var e models.Email
	if err := scanner.Scan(
		&e.ID, &e.PublicID, &e.Recipient, &e.Sender, &e.SentAt,
		&e.CompanyID, &e.UniqueCode, &e.Content, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
