/*
Package finance provides the ledger and billing core.

PURPOSE:
  Money owed by a student is never stored as a mutable balance field.
  Every charge and every payment is an immutable ledger entry attached to
  an enrollment, and balance is always recomputed by replaying the
  entries. This package defines the transaction model, the balance and
  due-date calculators, and the monthly billing batch.

KEY CONCEPTS IN THIS FILE (transaction.go):
  - Transaction: an immutable ledger entry with a non-negative magnitude
  - TransactionType: DEBIT (student owes more) or CREDIT (owes less)
  - Category: what kind of entry this is; the category DETERMINES the type

DESIGN PRINCIPLES:
  1. Category implies type. Callers never pick DEBIT/CREDIT directly;
     each category has exactly one type and the constructors set it.
  2. Payment-only fields. Only PAYMENT entries carry a payment method and
     a receiving staff member; every other category must leave them empty.
  3. Append-only. Transactions are never updated or deleted. Corrections
     are new entries.
  4. Precision: decimal.Decimal for money, never float.

SEE ALSO:
  - ledger.go: the append-only log interface and balance replay
  - billing.go: the monthly fee batch that writes MONTHLY_FEE entries
*/
package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omadli/tagayev-uz/timetable"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EnrollmentID string
type TransactionID string

// =============================================================================
// TRANSACTION TYPE AND CATEGORY
// =============================================================================

// TransactionType is the sign of a ledger entry. DEBIT increases what the
// student owes, CREDIT decreases it.
type TransactionType string

const (
	TxDebit  TransactionType = "DEBIT"
	TxCredit TransactionType = "CREDIT"
)

// Category classifies a ledger entry. Each category maps to exactly one
// transaction type; see TypeForCategory.
type Category string

const (
	CategoryMonthlyFee Category = "MONTHLY_FEE"
	CategoryPayment    Category = "PAYMENT"
	CategoryDiscount   Category = "DISCOUNT"
	CategoryBonus      Category = "BONUS"
	CategoryRefund     Category = "REFUND"
	CategoryOtherFee   Category = "OTHER_FEE"
)

// TypeForCategory returns the ledger type a category requires. The second
// return is false for unknown categories.
func TypeForCategory(c Category) (TransactionType, bool) {
	switch c {
	case CategoryPayment, CategoryDiscount, CategoryBonus:
		return TxCredit, true
	case CategoryMonthlyFee, CategoryOtherFee, CategoryRefund:
		return TxDebit, true
	}
	return "", false
}

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

// Transaction records one balance change for an enrollment. Amount is
// always a non-negative magnitude; the sign is implied by Type.
type Transaction struct {
	ID           TransactionID
	EnrollmentID EnrollmentID
	Type         TransactionType
	Category     Category
	Amount       decimal.Decimal

	// PaymentMethod and ReceiverID are set only for PAYMENT entries
	// (how the money arrived and which staff member took it).
	PaymentMethod string
	ReceiverID    string

	Comment   string
	CreatedAt time.Time
}

// Date returns the civil date the entry was created on.
func (t Transaction) Date() timetable.Date {
	return timetable.DateOf(t.CreatedAt)
}

// Signed returns the amount with its ledger sign applied: positive for
// CREDIT, negative for DEBIT.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TxDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Validate enforces the category rules. Entries built through the
// constructors always pass; this guards records decoded from requests or
// loaded from storage.
func (t Transaction) Validate() error {
	wantType, ok := TypeForCategory(t.Category)
	if !ok {
		return &TransactionError{Category: t.Category, Detail: "unknown category"}
	}
	if t.Type != wantType {
		return &TransactionError{Category: t.Category, Detail: "type must be " + string(wantType)}
	}
	if t.Amount.IsNegative() {
		return &TransactionError{Category: t.Category, Detail: "amount must not be negative"}
	}
	if t.EnrollmentID == "" {
		return &TransactionError{Category: t.Category, Detail: "enrollment is required"}
	}
	if t.Category == CategoryPayment {
		if t.PaymentMethod == "" || t.ReceiverID == "" {
			return &TransactionError{Category: t.Category, Detail: "payment method and receiver are required"}
		}
	} else if t.PaymentMethod != "" || t.ReceiverID != "" {
		return &TransactionError{Category: t.Category, Detail: "payment method and receiver are only allowed on payments"}
	}
	return nil
}

// =============================================================================
// CONSTRUCTORS - One per category, accepting only that category's fields
// =============================================================================

func newTransaction(enrollmentID EnrollmentID, category Category, amount decimal.Decimal, comment string, at time.Time) Transaction {
	txType, _ := TypeForCategory(category)
	return Transaction{
		ID:           TransactionID(uuid.NewString()),
		EnrollmentID: enrollmentID,
		Type:         txType,
		Category:     category,
		Amount:       amount,
		Comment:      comment,
		CreatedAt:    at,
	}
}

// NewPayment records money received from the student. Method is how it
// arrived (cash, card, transfer) and receiverID is the staff member who
// took it; both are required.
func NewPayment(enrollmentID EnrollmentID, amount decimal.Decimal, method, receiverID, comment string, at time.Time) Transaction {
	tx := newTransaction(enrollmentID, CategoryPayment, amount, comment, at)
	tx.PaymentMethod = method
	tx.ReceiverID = receiverID
	return tx
}

// NewMonthlyFee records the recurring monthly charge.
func NewMonthlyFee(enrollmentID EnrollmentID, amount decimal.Decimal, comment string, at time.Time) Transaction {
	return newTransaction(enrollmentID, CategoryMonthlyFee, amount, comment, at)
}

// NewDiscount reduces what the student owes without money changing hands.
func NewDiscount(enrollmentID EnrollmentID, amount decimal.Decimal, comment string, at time.Time) Transaction {
	return newTransaction(enrollmentID, CategoryDiscount, amount, comment, at)
}

// NewBonus credits the student, typically for referrals or promotions.
func NewBonus(enrollmentID EnrollmentID, amount decimal.Decimal, comment string, at time.Time) Transaction {
	return newTransaction(enrollmentID, CategoryBonus, amount, comment, at)
}

// NewRefund records money returned to the student, reducing their credit.
func NewRefund(enrollmentID EnrollmentID, amount decimal.Decimal, comment string, at time.Time) Transaction {
	return newTransaction(enrollmentID, CategoryRefund, amount, comment, at)
}

// NewOtherFee records a one-off charge (materials, exam fees).
func NewOtherFee(enrollmentID EnrollmentID, amount decimal.Decimal, comment string, at time.Time) Transaction {
	return newTransaction(enrollmentID, CategoryOtherFee, amount, comment, at)
}
