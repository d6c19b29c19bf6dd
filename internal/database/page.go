package database

import "fmt"

// Pagination bounds.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// Page is limit/offset pagination. A zero Limit means DefaultPageLimit.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default limit and rejects out-of-range values.
func (p Page) Normalize(op string) (Page, error) {
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit < 0 || p.Limit > MaxPageLimit {
		return p, Invalid(op, "limit", fmt.Sprintf("must be between 1 and %d", MaxPageLimit))
	}
	if p.Offset < 0 {
		return p, Invalid(op, "offset", "must not be negative")
	}
	return p, nil
}
