package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/znz-systems/emailfilter/internal/apperr"
	"github.com/znz-systems/emailfilter/internal/models"
)

// CompanyRef is the company reference of a submitted email. It accepts a JSON
// number or a numeric string so a malformed reference is reported against the
// item instead of failing the whole request body.
type CompanyRef struct {
	ID      int64
	Invalid bool
}

// Ref returns a CompanyRef pointing at id.
func Ref(id int64) CompanyRef {
	return CompanyRef{ID: id}
}

func (c *CompanyRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = CompanyRef{}
		return nil
	}
	raw := string(data)
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unq)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		*c = CompanyRef{Invalid: true}
		return nil
	}
	*c = CompanyRef{ID: id}
	return nil
}

func (c CompanyRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ID)
}

// Input is one email submission as received from a caller.
type Input struct {
	Recipient  string     `json:"recipient"`
	Sender     string     `json:"sender"`
	Timestamp  string     `json:"timestamp"`
	Company    CompanyRef `json:"company"`
	UniqueCode string     `json:"unique_code"`
	Content    string     `json:"content"`

	// Malformed holds decode-time errors for fields whose JSON value had the
	// wrong type. Those fields skip the regular checks.
	Malformed apperr.FieldErrors `json:"-"`
}

// DecodeInput decodes one submitted email. It never fails: a value that is
// not an object, or a field of the wrong JSON type, is recorded in
// Input.Malformed so the item is reported alongside the rest of its batch.
func DecodeInput(data []byte) Input {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return Input{Malformed: apperr.FieldErrors{"non_field_errors": {"expected an email object"}}}
	}

	in := Input{Malformed: apperr.FieldErrors{}}
	for field, dst := range map[string]*string{
		"recipient":   &in.Recipient,
		"sender":      &in.Sender,
		"timestamp":   &in.Timestamp,
		"unique_code": &in.UniqueCode,
		"content":     &in.Content,
	} {
		v, ok := raw[field]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			in.Malformed.Add(field, field+" must be a string")
		}
	}
	if v, ok := raw["company"]; ok {
		// CompanyRef.UnmarshalJSON never errors.
		_ = json.Unmarshal(v, &in.Company)
	}
	return in
}

// timestampLayouts are accepted for the email timestamp. Layouts without a
// zone are read in the service location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// checkItem runs the per-item structural and content checks. It returns the
// create params (meaningful only when fields is empty) and whether the unique
// code itself is well formed, which gates the uniqueness check.
func checkItem(in Input, loc *time.Location) (models.EmailCreateParams, apperr.FieldErrors, bool) {
	fields := apperr.FieldErrors{}
	for f, msgs := range in.Malformed {
		fields[f] = append(fields[f], msgs...)
	}
	if fields.Has("non_field_errors") {
		return models.EmailCreateParams{}, fields, false
	}
	malformed := in.Malformed.Has

	p := models.EmailCreateParams{
		Recipient:  strings.TrimSpace(in.Recipient),
		Sender:     strings.TrimSpace(in.Sender),
		UniqueCode: strings.TrimSpace(in.UniqueCode),
		Content:    in.Content,
	}

	if !malformed("recipient") {
		checkString(fields, "recipient", p.Recipient, models.MaxAddressLength)
	}
	if !malformed("sender") {
		checkString(fields, "sender", p.Sender, models.MaxAddressLength)
	}

	switch ts := strings.TrimSpace(in.Timestamp); {
	case malformed("timestamp"):
	case ts == "":
		fields.Add("timestamp", "timestamp is required")
	default:
		if t, ok := parseTimestamp(ts, loc); ok {
			p.SentAt = t
		} else {
			fields.Add("timestamp", "timestamp must be an ISO 8601 date and time")
		}
	}

	switch {
	case in.Company.Invalid:
		fields.Add("company", "company must be an integer id")
	case in.Company.ID <= 0:
		fields.Add("company", "company is required")
	default:
		p.CompanyID = in.Company.ID
	}

	codeOK := !malformed("unique_code") &&
		checkString(fields, "unique_code", p.UniqueCode, models.MaxUniqueCodeLength)

	if !malformed("content") && strings.TrimSpace(in.Content) == "" {
		fields.Add("content", "content is required and must not be blank")
	}

	return p, fields, codeOK
}

func checkString(fields apperr.FieldErrors, field, value string, max int) bool {
	switch {
	case value == "":
		fields.Add(field, field+" is required")
		return false
	case utf8.RuneCountInString(value) > max:
		fields.Add(field, fmt.Sprintf("%s must be at most %d characters", field, max))
		return false
	}
	return true
}
