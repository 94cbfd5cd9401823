package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/znz-systems/emailfilter/internal/apperr"
)

func TestDecodeInput(t *testing.T) {
	in := DecodeInput([]byte(`{"recipient":" ops@acme.test ","sender":"a@b.test","timestamp":"2024-03-01T10:00:00Z","company":"3","unique_code":"X1","content":"hi"}`))
	assert.Empty(t, in.Malformed)
	assert.Equal(t, " ops@acme.test ", in.Recipient)
	assert.Equal(t, CompanyRef{ID: 3}, in.Company)

	in = DecodeInput([]byte(`{"recipient":null,"content":42,"unique_code":["a"]}`))
	assert.Equal(t, apperr.FieldErrors{
		"content":     {"content must be a string"},
		"unique_code": {"unique_code must be a string"},
	}, in.Malformed)

	for _, raw := range []string{`5`, `"text"`, `null`, `[]`} {
		in = DecodeInput([]byte(raw))
		assert.True(t, in.Malformed.Has("non_field_errors"), raw)
	}
}

func TestCheckItem_MalformedFieldsSkipRegularChecks(t *testing.T) {
	in := DecodeInput([]byte(`{"recipient":"ops@acme.test","sender":"a@b.test","timestamp":false,"company":1,"unique_code":7,"content":{}}`))

	_, fields, codeOK := checkItem(in, time.UTC)
	assert.False(t, codeOK)
	assert.Equal(t, apperr.FieldErrors{
		"timestamp":   {"timestamp must be a string"},
		"unique_code": {"unique_code must be a string"},
		"content":     {"content must be a string"},
	}, fields)

	_, fields, codeOK = checkItem(DecodeInput([]byte(`12`)), time.UTC)
	assert.False(t, codeOK)
	assert.Equal(t, apperr.FieldErrors{"non_field_errors": {"expected an email object"}}, fields)
}
