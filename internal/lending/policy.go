package lending

import (
	"fmt"
	"time"
)

// Policy holds the library's lending rules.
type Policy struct {
	// LoanPeriodDays is the number of days between lending and the due date.
	LoanPeriodDays int
	// FinePerDay is charged for every calendar day a return is late, in the
	// smallest currency unit.
	FinePerDay int64
	// MaxExtensionDays bounds a single due date extension.
	MaxExtensionDays int
	// NearDueDays is the default lookahead for near-due projections.
	NearDueDays int
	// Location decides which calendar day "now" falls on.
	Location *time.Location
}

// DefaultPolicy returns the standard rules: 7 day loans, 2000 per late day,
// extensions of up to 30 days and a 3 day near-due window, in UTC.
func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays:   7,
		FinePerDay:       2000,
		MaxExtensionDays: 30,
		NearDueDays:      3,
		Location:         time.UTC,
	}
}

// Validate checks that the policy is usable.
func (p Policy) Validate() error {
	if p.LoanPeriodDays <= 0 {
		return fmt.Errorf("loan period must be positive, got %d", p.LoanPeriodDays)
	}
	if p.FinePerDay < 0 {
		return fmt.Errorf("fine per day must not be negative, got %d", p.FinePerDay)
	}
	if p.MaxExtensionDays <= 0 {
		return fmt.Errorf("max extension must be positive, got %d", p.MaxExtensionDays)
	}
	if p.NearDueDays <= 0 {
		return fmt.Errorf("near-due window must be positive, got %d", p.NearDueDays)
	}
	return nil
}
