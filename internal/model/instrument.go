package model

import (
	"time"
)

// Instrument represents a tradable instrument from the upstream registry
type Instrument struct {
	Symbol     string     `json:"symbol" db:"symbol"`
	Name       string     `json:"name" db:"name"`
	Exchange   string     `json:"exchange" db:"exchange"`
	ListDate   time.Time  `json:"list_date" db:"list_date"`
	DelistDate *time.Time `json:"delist_date,omitempty" db:"delist_date"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// ListedOn reports whether the instrument was listed on or before the given date.
func (i Instrument) ListedOn(date time.Time) bool {
	return !i.ListDate.After(date)
}

// DelistedBy reports whether the instrument was delisted on or before the given date.
func (i Instrument) DelistedBy(date time.Time) bool {
	return i.DelistDate != nil && !i.DelistDate.After(date)
}

// InstrumentCoverage summarizes how much of the expected trading-day range
// has stored data for one instrument
type InstrumentCoverage struct {
	Symbol        string     `json:"symbol" db:"symbol"`
	Name          string     `json:"name" db:"name"`
	ListDate      time.Time  `json:"list_date" db:"list_date"`
	ActualDays    int        `json:"actual_days" db:"actual_days"`
	ExpectedDays  int        `json:"expected_days"`
	CoverageRate  float64    `json:"coverage_rate"`
	FirstDataDate *time.Time `json:"first_data_date,omitempty" db:"first_data_date"`
	LastDataDate  *time.Time `json:"last_data_date,omitempty" db:"last_data_date"`
}
