package models

import (
	"time"

	"github.com/google/uuid"
)

// Field length limits shared by validation and the schema.
const (
	MaxCompanyNameLength = 150
	MaxCompanyCodeLength = 50
	MaxAddressLength     = 254
	MaxUniqueCodeLength  = 200
)

type Company struct {
	ID          int64     `json:"id"`
	PublicID    uuid.UUID `json:"public_id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type CompanyCreateParams struct {
	Name        string
	Code        string
	Description *string
}

type Email struct {
	ID         int64     `json:"id"`
	PublicID   uuid.UUID `json:"public_id"`
	Recipient  string    `json:"recipient"`
	Sender     string    `json:"sender"`
	SentAt     time.Time `json:"timestamp"`
	CompanyID  int64     `json:"company"`
	UniqueCode string    `json:"unique_code"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type EmailCreateParams struct {
	Recipient  string
	Sender     string
	SentAt     time.Time
	CompanyID  int64
	UniqueCode string
	Content    string
}

// EmailQuery is the store-level form of a composed filter. Zero values mean
// "not filtered"; DayStart/DayEnd are set together.
type EmailQuery struct {
	Sender    string
	Recipient string
	Content   string
	CompanyID int64
	DayStart  *time.Time
	DayEnd    *time.Time
	Limit     int
	Offset    int
}

// EmailPage is one page of a filtered query.
type EmailPage struct {
	Items    []Email
	Total    int
	Page     int
	PageSize int
}

func (p EmailPage) HasNext() bool {
	if p.PageSize <= 0 {
		return false
	}
	return p.Page < (p.Total+p.PageSize-1)/p.PageSize
}

func (p EmailPage) HasPrevious() bool {
	return p.Page > 1 && p.Total > 0
}
