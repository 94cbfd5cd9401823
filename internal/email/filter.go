package email

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/znz-systems/emailfilter/internal/apperr"
	"github.com/znz-systems/emailfilter/internal/models"
)

// Filter holds the recognised query filters. A zero field is absent.
type Filter struct {
	Sender    string
	Recipient string
	Content   string
	CompanyID int64
	// Day is midnight of the requested calendar day in the service location.
	Day *time.Time
}

// Empty reports whether no filter is present.
func (f Filter) Empty() bool {
	return f.Sender == "" && f.Recipient == "" && f.Content == "" && f.CompanyID == 0 && f.Day == nil
}

func (f Filter) query(limit, offset int) models.EmailQuery {
	q := models.EmailQuery{
		Sender:    f.Sender,
		Recipient: f.Recipient,
		Content:   f.Content,
		CompanyID: f.CompanyID,
		Limit:     limit,
		Offset:    offset,
	}
	if f.Day != nil {
		start := *f.Day
		end := start.AddDate(0, 0, 1)
		q.DayStart, q.DayEnd = &start, &end
	}
	return q
}

// dateLayouts are tried in order for the date filter; only the calendar day
// of the parsed value, seen from the service location, is kept.
var dateLayouts = append([]string{"2006-01-02"}, timestampLayouts...)

// ParseFilter reads the recognised filters from query values. Values that
// are blank after trimming are treated as absent. Dates are matched as whole
// days in loc.
func ParseFilter(values url.Values, loc *time.Location) (Filter, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := Filter{
		Sender:    strings.TrimSpace(values.Get("sender")),
		Recipient: strings.TrimSpace(values.Get("recipient")),
		Content:   strings.TrimSpace(values.Get("content")),
	}
	fields := apperr.FieldErrors{}

	if raw := strings.TrimSpace(values.Get("company")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			fields.Add("company", "company must be a positive integer id")
		} else {
			f.CompanyID = id
		}
	}

	if raw := strings.TrimSpace(values.Get("date")); raw != "" {
		day, ok := parseDay(raw, loc)
		if !ok {
			fields.Add("date", "date must be formatted as YYYY-MM-DD")
		} else {
			f.Day = &day
		}
	}

	if len(fields) > 0 {
		return Filter{}, &apperr.ValidationError{Fields: fields}
	}
	return f, nil
}

func parseDay(raw string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err != nil {
			continue
		}
		y, m, d := t.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), true
	}
	return time.Time{}, false
}

// ParsePage reads a 1-based page number. An empty value means page 1.
func ParsePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, apperr.Validation("page", "page must be a positive integer")
	}
	return page, nil
}
