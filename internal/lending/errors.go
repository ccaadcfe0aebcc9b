package lending

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

var (
	ErrLoanNotFound    = fmt.Errorf("%w: loan not found", ErrNotFound)
	ErrBookNotFound    = fmt.Errorf("%w: book not found", ErrNotFound)
	ErrMemberNotFound  = fmt.Errorf("%w: member not found", ErrNotFound)
	ErrFineNotFound    = fmt.Errorf("%w: fine not found", ErrNotFound)
	ErrNoMemberProfile = fmt.Errorf("%w: member profile not found", ErrNotFound)

	ErrNoCopiesAvailable = fmt.Errorf("%w: no copies available", ErrConflict)
	ErrDuplicateLoan     = fmt.Errorf("%w: member already has an open loan for this book", ErrConflict)
	ErrNotPending        = fmt.Errorf("%w: loan is not pending", ErrConflict)
	ErrNotActive         = fmt.Errorf("%w: loan is not borrowed", ErrConflict)
	ErrNotReturned       = fmt.Errorf("%w: loan has not been returned", ErrConflict)
	ErrUnpaidFine        = fmt.Errorf("%w: loan has an unpaid fine", ErrConflict)
	ErrFineExists        = fmt.Errorf("%w: loan already has a fine", ErrConflict)
	ErrFineAlreadyPaid   = fmt.Errorf("%w: fine is already paid", ErrConflict)
	ErrFineNotPaid       = fmt.Errorf("%w: fine is not paid", ErrConflict)
	ErrNotLate           = fmt.Errorf("%w: loan is not late", ErrConflict)

	ErrAdminOnly   = fmt.Errorf("%w: admin role required", ErrForbidden)
	ErrNotYourLoan = fmt.Errorf("%w: loan belongs to another member", ErrForbidden)
)

// validationError builds an ErrValidation with a message.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
