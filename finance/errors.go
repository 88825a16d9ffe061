/*
errors.go - Centralized error types for the money core

ERROR CATEGORIES:
  1. Validation errors - malformed transactions, rejected at write time
  2. Duplicate errors - the monthly-fee idempotence guard firing
  3. Data-integrity errors - a group with no price history
  4. Not-found errors - missing referenced entities

The API layer maps IsClientError -> 400, IsNotFound -> 404,
IsDuplicate -> 409, and everything else -> 500.
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransaction is returned for transactions violating the
	// category rules (wrong type, negative amount, payment fields on a
	// non-payment category).
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrDuplicateMonthlyFee is returned when a monthly fee already exists
	// for the enrollment and calendar month. This is the billing batch's
	// idempotence guard, not a failure of the batch itself.
	ErrDuplicateMonthlyFee = errors.New("monthly fee already charged for this month")

	// ErrNoPriceHistory indicates a group without any price entry at or
	// before the asked date. Every group must carry an initial price, so
	// this is a data-integrity problem, not caller error.
	ErrNoPriceHistory = errors.New("no price history at or before date")

	// ErrDuplicatePriceDate is returned when a second price entry is added
	// with a start date the group already has.
	ErrDuplicatePriceDate = errors.New("price with this start date already exists")

	// ErrPriceProtected is returned when deleting a price entry whose
	// start date is outside the edit window, or the group's only price.
	ErrPriceProtected = errors.New("price entry is protected from deletion")

	// ErrPriceNotFound is returned when a referenced price entry doesn't exist.
	ErrPriceNotFound = errors.New("price entry not found")

	// ErrEnrollmentNotFound is returned when a referenced enrollment doesn't exist.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrDuplicateEnrollment is returned when a student is enrolled into a
	// group they are already a member of.
	ErrDuplicateEnrollment = errors.New("student already enrolled in group")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransactionError reports which category rule a transaction violates.
type TransactionError struct {
	Category Category
	Detail   string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("invalid %s transaction: %s", e.Category, e.Detail)
}

func (e *TransactionError) Unwrap() error { return ErrInvalidTransaction }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransaction) ||
		errors.Is(err, ErrDuplicatePriceDate) ||
		errors.Is(err, ErrPriceProtected) ||
		errors.Is(err, ErrDuplicateEnrollment)
}

// IsDuplicate returns true for uniqueness-guard rejections.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateMonthlyFee) ||
		errors.Is(err, ErrDuplicatePriceDate) ||
		errors.Is(err, ErrDuplicateEnrollment)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEnrollmentNotFound) || errors.Is(err, ErrPriceNotFound)
}
