package models

import "time"

const (
	DefaultPerPage = 30
	MaxPerPage     = 100

	DefaultListLimit = 200
	MaxListLimit     = 200
)

// Page is a time-anchored feed page. Posts updated after Before are not
// part of the page.
type Page struct {
	Before  time.Time
	Page    int
	PerPage int
}

// Validate rejects out-of-range pagination.
func (p Page) Validate() error {
	if p.Page < 1 {
		return Invalid("page must be at least 1")
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		return Invalid("per_page must be between 1 and 100")
	}
	return nil
}

// Skip is the number of posts before the page.
func (p Page) Skip() int {
	return (p.Page - 1) * p.PerPage
}

// ListParams pages an identity listing, optionally filtered by name.
type ListParams struct {
	Offset int
	Limit  int
	Query  string
}

// Validate rejects out-of-range list paging.
func (l ListParams) Validate() error {
	if l.Offset < 0 {
		return Invalid("offset must not be negative")
	}
	if l.Limit < 1 || l.Limit > MaxListLimit {
		return Invalid("limit must be between 1 and 200")
	}
	return nil
}
