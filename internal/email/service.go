package email

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/znz-systems/emailfilter/internal/apperr"
	"github.com/znz-systems/emailfilter/internal/logging"
	"github.com/znz-systems/emailfilter/internal/models"
	"github.com/znz-systems/emailfilter/internal/store"
	"golang.org/x/sync/errgroup"
)

const (
	msgCompanyMissing = "company %d does not exist"
	msgCodeExists     = "an email with this unique_code already exists"
)

// Recorder receives ingestion and query events for instrumentation.
type Recorder interface {
	EmailsIngested(n int)
	BatchRejected(reason string)
	Query(endpoint, outcome string)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) EmailsIngested(int)   {}
func (NoopRecorder) BatchRejected(string) {}
func (NoopRecorder) Query(string, string) {}

// Options configures a Service.
type Options struct {
	PageSize     int
	MaxBatchSize int
	Location     *time.Location
	Recorder     Recorder
}

// Service implements bulk ingestion and filtered queries over email records.
type Service struct {
	emails       store.EmailStore
	pageSize     int
	maxBatchSize int
	loc          *time.Location
	rec          Recorder
}

// NewService creates a new email Service. Zero options fall back to a page
// size of 50, a batch limit of 500 and UTC.
func NewService(emails store.EmailStore, opts Options) *Service {
	s := &Service{
		emails:       emails,
		pageSize:     opts.PageSize,
		maxBatchSize: opts.MaxBatchSize,
		loc:          opts.Location,
		rec:          opts.Recorder,
	}
	if s.pageSize <= 0 {
		s.pageSize = 50
	}
	if s.maxBatchSize <= 0 {
		s.maxBatchSize = 500
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.rec == nil {
		s.rec = NoopRecorder{}
	}
	return s
}

// Location returns the zone used for naive timestamps and day filters.
func (s *Service) Location() *time.Location {
	return s.loc
}

// itemCheck accumulates the outcome of validating one batch item.
type itemCheck struct {
	params    models.EmailCreateParams
	invalid   apperr.FieldErrors
	conflicts apperr.FieldErrors
	codeOK    bool
}

// CreateBatch validates every item and, only if all pass, stores them in a
// single transaction. Created records are returned in input order. When any
// item fails, a *apperr.BatchError lists every failing item and nothing is
// stored.
func (s *Service) CreateBatch(ctx context.Context, items []Input) ([]models.Email, error) {
	log := logging.FromContext(ctx)

	if len(items) == 0 {
		return nil, apperr.Validation("non_field_errors", "at least one email is required")
	}
	if len(items) > s.maxBatchSize {
		return nil, apperr.Validation("non_field_errors", fmt.Sprintf("a batch may contain at most %d emails", s.maxBatchSize))
	}

	checks := make([]itemCheck, len(items))
	var (
		companyIDs []int64
		codes      []string
		seenID     = map[int64]bool{}
	)
	for i, in := range items {
		p, fields, codeOK := checkItem(in, s.loc)
		checks[i] = itemCheck{params: p, invalid: fields, conflicts: apperr.FieldErrors{}, codeOK: codeOK}
		if p.CompanyID > 0 && !seenID[p.CompanyID] {
			seenID[p.CompanyID] = true
			companyIDs = append(companyIDs, p.CompanyID)
		}
		if codeOK {
			codes = append(codes, p.UniqueCode)
		}
	}

	existingCompanies, existingCodes, err := s.lookup(ctx, companyIDs, codes)
	if err != nil {
		log.Error("batch validation lookup failed", "items", len(items), "error", err)
		s.rec.BatchRejected("persistence")
		return nil, fmt.Errorf("validate batch: %w", errors.Join(apperr.ErrPersistence, err))
	}

	batchCodes := make(map[string]bool, len(codes))
	for i := range checks {
		c := &checks[i]
		if id := c.params.CompanyID; id > 0 && !existingCompanies[id] {
			c.invalid.Add("company", fmt.Sprintf(msgCompanyMissing, id))
		}
		if c.codeOK {
			key := strings.ToLower(c.params.UniqueCode)
			if existingCodes[key] || batchCodes[key] {
				c.conflicts.Add("unique_code", msgCodeExists)
			}
			batchCodes[key] = true
		}
	}

	if bErr := collectFailures(checks); bErr != nil {
		reason := "validation"
		if bErr.ConflictOnly() {
			reason = "conflict"
		}
		log.Info("email batch rejected", "items", len(items), "failed", len(bErr.Items), "reason", reason)
		s.rec.BatchRejected(reason)
		return nil, bErr
	}

	params := make([]models.EmailCreateParams, len(checks))
	for i := range checks {
		params[i] = checks[i].params
	}

	created, err := s.emails.CreateEmails(ctx, params)
	if err != nil {
		return nil, s.commitError(ctx, params, err)
	}

	log.Info("email batch stored", "items", len(created))
	s.rec.EmailsIngested(len(created))
	return created, nil
}

// lookup fetches which referenced companies and unique codes already exist.
// The two reads are independent and run concurrently.
func (s *Service) lookup(ctx context.Context, companyIDs []int64, codes []string) (map[int64]bool, map[string]bool, error) {
	var (
		companies map[int64]bool
		existing  map[string]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		companies, err = s.emails.ExistingCompanyIDs(gctx, companyIDs)
		if err != nil {
			return fmt.Errorf("company lookup: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		existing, err = s.emails.ExistingUniqueCodes(gctx, codes)
		if err != nil {
			return fmt.Errorf("unique code lookup: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return companies, existing, nil
}

func collectFailures(checks []itemCheck) *apperr.BatchError {
	var failed []apperr.ItemError
	for i, c := range checks {
		if len(c.invalid) == 0 && len(c.conflicts) == 0 {
			continue
		}
		item := apperr.ItemError{Index: i, Kind: apperr.KindConflict, Fields: apperr.FieldErrors{}}
		if len(c.invalid) > 0 {
			item.Kind = apperr.KindValidation
		}
		for f, msgs := range c.invalid {
			item.Fields[f] = append(item.Fields[f], msgs...)
		}
		for f, msgs := range c.conflicts {
			item.Fields[f] = append(item.Fields[f], msgs...)
		}
		failed = append(failed, item)
	}
	if len(failed) == 0 {
		return nil
	}
	return &apperr.BatchError{Items: failed}
}

// commitError maps a failed transactional insert. Constraint violations that
// slipped past validation because of a concurrent writer are reported as
// item errors; everything else is an opaque persistence failure.
func (s *Service) commitError(ctx context.Context, params []models.EmailCreateParams, err error) error {
	log := logging.FromContext(ctx)

	var dup *store.DuplicateError
	if errors.As(err, &dup) && dup.Field == "unique_code" {
		items := make([]apperr.ItemError, 0, 1)
		for i, p := range params {
			if dup.Value != "" && strings.EqualFold(p.UniqueCode, dup.Value) {
				items = append(items, apperr.ItemError{
					Index: i, Kind: apperr.KindConflict,
					Fields: apperr.FieldErrors{"unique_code": {msgCodeExists}},
				})
			}
		}
		if len(items) == 0 {
			items = append(items, apperr.ItemError{
				Index: -1, Kind: apperr.KindConflict,
				Fields: apperr.FieldErrors{"unique_code": {msgCodeExists}},
			})
		}
		log.Info("email batch lost unique_code race", "code", dup.Value)
		s.rec.BatchRejected("conflict")
		return &apperr.BatchError{Items: items}
	}

	if errors.Is(err, store.ErrCompanyMissing) {
		s.rec.BatchRejected("validation")
		return &apperr.BatchError{Items: []apperr.ItemError{{
			Index: -1, Kind: apperr.KindValidation,
			Fields: apperr.FieldErrors{"company": {"referenced company no longer exists"}},
		}}}
	}

	log.Error("failed to store email batch", "items", len(params), "error", err)
	s.rec.BatchRejected("persistence")
	return fmt.Errorf("store email batch: %w", errors.Join(apperr.ErrPersistence, err))
}

// List runs the general filtered query. With no filters at all it returns an
// empty page without touching the store.
func (s *Service) List(ctx context.Context, f Filter, page int) (models.EmailPage, error) {
	if f.Empty() {
		s.rec.Query("list", "empty_policy")
		return s.emptyPage(page), nil
	}
	return s.run(ctx, "list", f, page)
}

// Search is List with content as a mandatory filter: without it the result
// is empty regardless of the other filters.
func (s *Service) Search(ctx context.Context, f Filter, page int) (models.EmailPage, error) {
	if f.Content == "" {
		s.rec.Query("search", "empty_policy")
		return s.emptyPage(page), nil
	}
	return s.run(ctx, "search", f, page)
}

func (s *Service) run(ctx context.Context, endpoint string, f Filter, page int) (models.EmailPage, error) {
	if page < 1 {
		return models.EmailPage{}, apperr.Validation("page", "page must be a positive integer")
	}

	// Pages whose offset does not fit in an int are past any real result
	// set; the largest offset still yields the true count and no rows.
	offset := math.MaxInt
	if page-1 <= math.MaxInt/s.pageSize {
		offset = (page - 1) * s.pageSize
	}

	items, total, err := s.emails.SearchEmails(ctx, f.query(s.pageSize, offset))
	if err != nil {
		logging.FromContext(ctx).Error("email query failed", "endpoint", endpoint, "error", err)
		return models.EmailPage{}, fmt.Errorf("query emails: %w", errors.Join(apperr.ErrPersistence, err))
	}
	s.rec.Query(endpoint, "executed")

	if items == nil {
		items = []models.Email{}
	}
	return models.EmailPage{Items: items, Total: total, Page: page, PageSize: s.pageSize}, nil
}

func (s *Service) emptyPage(page int) models.EmailPage {
	if page < 1 {
		page = 1
	}
	return models.EmailPage{Items: []models.Email{}, Page: page, PageSize: s.pageSize}
}
