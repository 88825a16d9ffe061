/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  domain model from the external contract. Dates travel as "YYYY-MM-DD"
  strings, session times as "HH:MM", weekday patterns as digit strings
  like "135" (Mon/Wed/Fri), money as decimal strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request structs carry go-playground/validator tags; handlers run the
  shared validator before touching domain logic. Domain rules (weekday
  digits, override variants, category rules) are enforced again by the
  domain types themselves.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/omadli/tagayev-uz/finance"
	"github.com/omadli/tagayev-uz/timetable"
)

// =============================================================================
// ERROR RESPONSE
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// GROUPS
// =============================================================================

type GroupDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RoomID     string `json:"room_id,omitempty"`
	Weekdays   string `json:"weekdays"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Archived   bool   `json:"archived"`
	ArchivedAt string `json:"archived_at,omitempty"`
}

type CreateGroupRequest struct {
	Name      string `json:"name" validate:"required"`
	RoomID    string `json:"room_id"`
	Weekdays  string `json:"weekdays" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	// Price seeds the group's price history so billing can never find an
	// empty one.
	Price string `json:"price" validate:"required"`
}

type UpdateGroupRequest struct {
	Name      string `json:"name" validate:"required"`
	RoomID    string `json:"room_id"`
	Weekdays  string `json:"weekdays" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// =============================================================================
// SCHEDULE
// =============================================================================

type LessonScheduleDTO struct {
	GroupID           string   `json:"group_id"`
	StartDate         string   `json:"start_date"`
	EndDate           string   `json:"end_date"`
	RegularLessonDays []string `json:"regular_lesson_dates"`
	ActualLessonDays  []string `json:"actual_lesson_dates"`
}

type ScheduleDetailsDTO struct {
	Holidays  []HolidayDTO  `json:"holidays"`
	Overrides []OverrideDTO `json:"overrides"`
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CreateHolidayRequest struct {
	Date        string `json:"date" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// =============================================================================
// OVERRIDES
// =============================================================================

type OverrideDTO struct {
	ID           string `json:"id"`
	GroupID      string `json:"group_id"`
	Kind         string `json:"kind"`
	OriginalDate string `json:"original_date,omitempty"`
	NewDate      string `json:"new_date,omitempty"`
	NewStartTime string `json:"new_start_time,omitempty"`
	NewEndTime   string `json:"new_end_time,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type CreateOverrideRequest struct {
	Kind         string `json:"kind" validate:"required,oneof=cancellation reschedule extra"`
	OriginalDate string `json:"original_date"`
	NewDate      string `json:"new_date"`
	NewStartTime string `json:"new_start_time"`
	NewEndTime   string `json:"new_end_time"`
	Reason       string `json:"reason"`
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

type EnrollmentDTO struct {
	ID            string         `json:"id"`
	StudentID     string         `json:"student_id"`
	GroupID       string         `json:"group_id"`
	JoinedAt      string         `json:"joined_at"`
	OverridePrice string         `json:"override_price,omitempty"`
	Archived      bool           `json:"archived"`
	Financials    *FinancialsDTO `json:"financials,omitempty"`
}

type FinancialsDTO struct {
	Balance        string `json:"balance"`
	Status         string `json:"status"`
	EffectivePrice string `json:"effective_price"`
	NextDueDate    string `json:"next_due_date,omitempty"`
	NextDueAmount  string `json:"next_due_amount,omitempty"`
	DueSoon        bool   `json:"due_soon"`
}

type CreateEnrollmentRequest struct {
	StudentID     string `json:"student_id" validate:"required"`
	GroupID       string `json:"group_id" validate:"required"`
	JoinedAt      string `json:"joined_at" validate:"required"`
	OverridePrice string `json:"override_price"`
}

// =============================================================================
// PRICES
// =============================================================================

type PriceDTO struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	Amount    string `json:"amount"`
	StartDate string `json:"start_date"`
}

type CreatePriceRequest struct {
	Amount    string `json:"amount" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	ID            string `json:"id"`
	EnrollmentID  string `json:"enrollment_id"`
	Type          string `json:"type"`
	Category      string `json:"category"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method,omitempty"`
	ReceiverID    string `json:"receiver_id,omitempty"`
	Comment       string `json:"comment,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type CreateTransactionRequest struct {
	Category      string `json:"category" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	PaymentMethod string `json:"payment_method"`
	ReceiverID    string `json:"receiver_id"`
	Comment       string `json:"comment"`
}

// =============================================================================
// BILLING AND DASHBOARD
// =============================================================================

type RunBillingRequest struct {
	// RunDate defaults to today when omitted.
	RunDate string `json:"run_date"`
}

type BillingReportDTO struct {
	RunDate  string              `json:"run_date"`
	Created  int                 `json:"created"`
	Skipped  int                 `json:"skipped"`
	Failures []BillingFailureDTO `json:"failures"`
}

type BillingFailureDTO struct {
	EnrollmentID string `json:"enrollment_id"`
	GroupID      string `json:"group_id"`
	Error        string `json:"error"`
}

type DashboardStatsDTO struct {
	ActiveEnrollments int    `json:"active_enrollments"`
	Debtors           int    `json:"debtors"`
	TotalDebt         string `json:"total_debt"`
	DueSoon           int    `json:"due_soon"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toGroupDTO(g timetable.Group) GroupDTO {
	dto := GroupDTO{
		ID:        string(g.ID),
		Name:      g.Name,
		RoomID:    g.RoomID,
		Weekdays:  g.Weekdays.String(),
		StartDate: g.StartDate.String(),
		EndDate:   g.EndDate.String(),
		StartTime: g.StartTime.String(),
		EndTime:   g.EndTime.String(),
		Archived:  g.Archived,
	}
	if !g.ArchivedAt.IsZero() {
		dto.ArchivedAt = g.ArchivedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

func toHolidayDTO(h timetable.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:          h.ID,
		Date:        h.Date.String(),
		Name:        h.Name,
		Description: h.Description,
	}
}

func toOverrideDTO(o timetable.Override) OverrideDTO {
	dto := OverrideDTO{
		ID:      o.ID,
		GroupID: string(o.GroupID),
		Kind:    string(o.Kind),
		Reason:  o.Reason,
	}
	if !o.OriginalDate.IsZero() {
		dto.OriginalDate = o.OriginalDate.String()
	}
	if !o.NewDate.IsZero() {
		dto.NewDate = o.NewDate.String()
		dto.NewStartTime = o.NewStartTime.String()
		dto.NewEndTime = o.NewEndTime.String()
	}
	return dto
}

func toEnrollmentDTO(e finance.Enrollment) EnrollmentDTO {
	dto := EnrollmentDTO{
		ID:        string(e.ID),
		StudentID: e.StudentID,
		GroupID:   string(e.GroupID),
		JoinedAt:  e.JoinedAt.String(),
		Archived:  e.Archived,
	}
	if e.OverridePrice != nil {
		dto.OverridePrice = e.OverridePrice.String()
	}
	return dto
}

func toFinancialsDTO(f finance.Financials) *FinancialsDTO {
	dto := &FinancialsDTO{
		Balance:        f.Balance.String(),
		Status:         string(f.Status),
		EffectivePrice: f.EffectivePrice.String(),
		DueSoon:        f.DueSoon,
	}
	if f.NextDueDate != nil {
		dto.NextDueDate = f.NextDueDate.String()
		dto.NextDueAmount = f.NextDueAmount.String()
	}
	return dto
}

func toPriceDTO(p finance.PricePoint) PriceDTO {
	return PriceDTO{
		ID:        p.ID,
		GroupID:   string(p.GroupID),
		Amount:    p.Amount.String(),
		StartDate: p.StartDate.String(),
	}
}

func toTransactionDTO(tx finance.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:            string(tx.ID),
		EnrollmentID:  string(tx.EnrollmentID),
		Type:          string(tx.Type),
		Category:      string(tx.Category),
		Amount:        tx.Amount.String(),
		PaymentMethod: tx.PaymentMethod,
		ReceiverID:    tx.ReceiverID,
		Comment:       tx.Comment,
		CreatedAt:     tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toBillingReportDTO(r finance.BillingReport) BillingReportDTO {
	dto := BillingReportDTO{
		RunDate:  r.RunDate.String(),
		Created:  r.Created,
		Skipped:  r.Skipped,
		Failures: make([]BillingFailureDTO, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		dto.Failures = append(dto.Failures, BillingFailureDTO{
			EnrollmentID: string(f.EnrollmentID),
			GroupID:      string(f.GroupID),
			Error:        f.Err.Error(),
		})
	}
	return dto
}

func dateStrings(dates []timetable.Date) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.String())
	}
	return out
}
