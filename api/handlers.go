/*
handlers.go - HTTP API handlers for the scheduling and billing engine

PURPOSE:
  Exposes the scheduling and ledger core via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Groups:
    GET    /api/groups                        List groups
    POST   /api/groups                        Create group (+ initial price)
    GET    /api/groups/{id}                   Group details
    PUT    /api/groups/{id}                   Update schedule
    POST   /api/groups/{id}/archive           Soft-delete
    POST   /api/groups/{id}/restore           Undo soft-delete
    GET    /api/groups/{id}/lesson-schedule   Regular + actual lesson dates
    GET    /api/groups/{id}/schedule-details  Holidays/overrides in a range

  Prices, overrides, enrollments nested under their group; holidays,
  transactions, billing, and dashboard at the top level. See server.go
  for the full route table.

REQUEST FLOW:
  1. Decode and validate the request body (go-playground/validator)
  2. Call domain logic
  3. Serialize the response
  4. Map domain errors onto HTTP statuses

ERROR HANDLING:
  - 400: validation errors, malformed dates and amounts
  - 404: missing group/enrollment
  - 409: room conflicts and uniqueness-guard rejections
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/omadli/tagayev-uz/finance"
	"github.com/omadli/tagayev-uz/store/sqlite"
	"github.com/omadli/tagayev-uz/timetable"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Resolver *timetable.Resolver
	Calc     *finance.Calculator
	Billing  *finance.BillingBatch
	Logger   zerolog.Logger

	validate *validator.Validate

	// today is swappable so tests can pin the clock.
	today func() timetable.Date
}

// NewHandler wires the handler against one store.
func NewHandler(store *sqlite.Store, logger zerolog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Resolver: timetable.NewResolver(store, store),
		Calc:     finance.NewCalculator(store, store),
		Billing:  finance.NewBillingBatch(store, logger),
		Logger:   logger,
		validate: validator.New(),
		today:    timetable.Today,
	}
}

// =============================================================================
// GROUP HANDLERS
// =============================================================================

// ListGroups returns all groups. ?include_archived=true includes archived.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	groups, err := h.Store.ListGroups(r.Context(), includeArchived)
	if err != nil {
		h.writeDomainError(w, "Failed to list groups", err)
		return
	}

	dtos := make([]GroupDTO, 0, len(groups))
	for _, g := range groups {
		dtos = append(dtos, toGroupDTO(g))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGroup creates a group with its initial price, rejecting room
// conflicts.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !h.decode(w, r, &req) {
		return
	}

	g, err := groupFromRequest(req.Name, req.RoomID, req.Weekdays,
		req.StartDate, req.EndDate, req.StartTime, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group definition", err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}

	// Conflict check and insert run atomically in the store, so two
	// simultaneous creates cannot both claim the room.
	ctx := r.Context()
	created, err := h.Store.CreateGroupChecked(ctx, g)
	if err != nil {
		h.writeDomainError(w, "Failed to create group", err)
		return
	}
	if _, err := h.Store.AddPrice(ctx, finance.PricePoint{
		GroupID:   created.ID,
		Amount:    price,
		StartDate: created.StartDate,
	}); err != nil {
		h.writeDomainError(w, "Failed to set initial price", err)
		return
	}

	writeJSON(w, http.StatusCreated, toGroupDTO(created))
}

// GetGroup returns one group.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toGroupDTO(g))
}

// UpdateGroup replaces a group's schedule, re-checking room conflicts.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadGroup(w, r)
	if !ok {
		return
	}

	var req UpdateGroupRequest
	if !h.decode(w, r, &req) {
		return
	}

	g, err := groupFromRequest(req.Name, req.RoomID, req.Weekdays,
		req.StartDate, req.EndDate, req.StartTime, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group definition", err)
		return
	}
	g.ID = existing.ID

	if err := h.Store.UpdateGroupChecked(r.Context(), g); err != nil {
		h.writeDomainError(w, "Failed to update group", err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupDTO(g))
}

// ArchiveGroup soft-deletes a group.
func (h *Handler) ArchiveGroup(w http.ResponseWriter, r *http.Request) {
	id := timetable.GroupID(chi.URLParam(r, "id"))
	if err := h.Store.ArchiveGroup(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to archive group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreGroup brings an archived group back.
func (h *Handler) RestoreGroup(w http.ResponseWriter, r *http.Request) {
	id := timetable.GroupID(chi.URLParam(r, "id"))
	if err := h.Store.RestoreGroup(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to restore group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetLessonSchedule returns the regular and actual lesson dates of a group
// within a range. Accepts ?start_date=&end_date= or ?month=YYYY-MM;
// defaults to the current month.
func (h *Handler) GetLessonSchedule(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	rng, err := h.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	actual, err := h.Resolver.ActualLessonDays(r.Context(), g, rng.Start, rng.End)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, LessonScheduleDTO{
		GroupID:           string(g.ID),
		StartDate:         rng.Start.String(),
		EndDate:           rng.End.String(),
		RegularLessonDays: dateStrings(timetable.RegularLessonDays(g, rng.Start, rng.End)),
		ActualLessonDays:  dateStrings(actual),
	})
}

// GetScheduleDetails returns the holidays hitting the group's pattern and
// the overrides touching the range.
func (h *Handler) GetScheduleDetails(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	rng, err := h.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	details, err := h.Resolver.ScheduleDetails(r.Context(), g, rng.Start, rng.End)
	if err != nil {
		h.writeDomainError(w, "Failed to load schedule details", err)
		return
	}

	dto := ScheduleDetailsDTO{
		Holidays:  make([]HolidayDTO, 0, len(details.Holidays)),
		Overrides: make([]OverrideDTO, 0, len(details.Overrides)),
	}
	for _, hd := range details.Holidays {
		dto.Holidays = append(dto.Holidays, toHolidayDTO(hd))
	}
	for _, o := range details.Overrides {
		dto.Overrides = append(dto.Overrides, toOverrideDTO(o))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns holidays in a range (defaults to the current year).
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	from := timetable.NewDate(today.Year, time.January, 1)
	to := timetable.NewDate(today.Year, time.December, 31)
	if r.URL.Query().Get("start_date") != "" || r.URL.Query().Get("month") != "" {
		rng, err := h.parseRange(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date range", err)
			return
		}
		from, to = rng.Start, rng.End
	}

	holidays, err := h.Store.HolidaysInRange(r.Context(), from, to)
	if err != nil {
		h.writeDomainError(w, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hd := range holidays {
		dtos = append(dtos, toHolidayDTO(hd))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a holiday; one per calendar date.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := timetable.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Store.SaveHoliday(r.Context(), timetable.Holiday{
		Date:        date,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(created))
}

// DeleteHoliday removes a holiday.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// OVERRIDE HANDLERS
// =============================================================================

// ListOverrides returns a group's overrides, newest first.
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	overrides, err := h.Store.ListOverrides(r.Context(), g.ID)
	if err != nil {
		h.writeDomainError(w, "Failed to list overrides", err)
		return
	}
	dtos := make([]OverrideDTO, 0, len(overrides))
	for _, o := range overrides {
		dtos = append(dtos, toOverrideDTO(o))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOverride adds a cancellation, reschedule, or extra lesson.
func (h *Handler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	var req CreateOverrideRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := overrideFromRequest(g.ID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid override", err)
		return
	}
	created, err := h.Store.SaveOverride(r.Context(), o)
	if err != nil {
		h.writeDomainError(w, "Failed to create override", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOverrideDTO(created))
}

// DeleteOverride removes an override.
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteOverride(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "Failed to delete override", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PRICE HANDLERS
// =============================================================================

// ListPrices returns a group's price history.
func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	prices, err := h.Store.Prices(r.Context(), g.ID)
	if err != nil {
		h.writeDomainError(w, "Failed to list prices", err)
		return
	}
	dtos := make([]PriceDTO, 0, len(prices))
	for _, p := range prices {
		dtos = append(dtos, toPriceDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePrice appends a price entry to a group's history.
func (h *Handler) CreatePrice(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	var req CreatePriceRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	startDate, err := timetable.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Store.AddPrice(r.Context(), finance.PricePoint{
		GroupID:   g.ID,
		Amount:    amount,
		StartDate: startDate,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to add price", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPriceDTO(created))
}

// DeletePrice removes a fresh, redundant price entry.
func (h *Handler) DeletePrice(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeletePrice(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "Failed to delete price", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

// ListEnrollments returns a group's memberships.
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	enrollments, err := h.Store.ListEnrollmentsByGroup(r.Context(), g.ID, includeArchived)
	if err != nil {
		h.writeDomainError(w, "Failed to list enrollments", err)
		return
	}
	dtos := make([]EnrollmentDTO, 0, len(enrollments))
	for _, e := range enrollments {
		dtos = append(dtos, toEnrollmentDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEnrollment enrolls a student into a group.
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	joined, err := timetable.ParseDate(req.JoinedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid joined_at (use YYYY-MM-DD)", err)
		return
	}

	ctx := r.Context()
	if _, err := h.Store.GetGroup(ctx, timetable.GroupID(req.GroupID)); err != nil {
		h.writeDomainError(w, "Group lookup failed", err)
		return
	}

	e := finance.Enrollment{
		StudentID: req.StudentID,
		GroupID:   timetable.GroupID(req.GroupID),
		JoinedAt:  joined,
	}
	if req.OverridePrice != "" {
		price, err := decimal.NewFromString(req.OverridePrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid override_price", err)
			return
		}
		e.OverridePrice = &price
	}

	created, err := h.Store.CreateEnrollment(ctx, e)
	if err != nil {
		h.writeDomainError(w, "Failed to create enrollment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnrollmentDTO(created))
}

// GetEnrollment returns an enrollment with its full financial picture.
func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	e, err := h.Store.GetEnrollment(ctx, finance.EnrollmentID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Enrollment lookup failed", err)
		return
	}
	g, err := h.Store.GetGroup(ctx, e.GroupID)
	if err != nil {
		h.writeDomainError(w, "Group lookup failed", err)
		return
	}

	financials, err := h.Calc.Financials(ctx, e, g, h.today())
	if err != nil {
		h.writeDomainError(w, "Failed to compute financials", err)
		return
	}

	dto := toEnrollmentDTO(e)
	dto.Financials = toFinancialsDTO(financials)
	writeJSON(w, http.StatusOK, dto)
}

// ArchiveEnrollment soft-deletes a membership.
func (h *Handler) ArchiveEnrollment(w http.ResponseWriter, r *http.Request) {
	id := finance.EnrollmentID(chi.URLParam(r, "id"))
	if err := h.Store.ArchiveEnrollment(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to archive enrollment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreEnrollment brings an archived membership back.
func (h *Handler) RestoreEnrollment(w http.ResponseWriter, r *http.Request) {
	id := finance.EnrollmentID(chi.URLParam(r, "id"))
	if err := h.Store.RestoreEnrollment(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to restore enrollment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns an enrollment's ledger, oldest first.
// ?category= narrows to one category.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id := finance.EnrollmentID(chi.URLParam(r, "id"))
	ctx := r.Context()

	var (
		txs []finance.Transaction
		err error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		txs, err = h.Store.TransactionsByCategory(ctx, id, finance.Category(category))
	} else {
		txs, err = h.Store.Transactions(ctx, id)
	}
	if err != nil {
		h.writeDomainError(w, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": dtos,
		"balance":      finance.BalanceOf(txs).String(),
	})
}

// CreateTransaction appends a ledger entry. The category dictates the
// type; only payments accept a method and receiver.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	id := finance.EnrollmentID(chi.URLParam(r, "id"))
	var req CreateTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	ctx := r.Context()
	if _, err := h.Store.GetEnrollment(ctx, id); err != nil {
		h.writeDomainError(w, "Enrollment lookup failed", err)
		return
	}

	tx, err := transactionFromRequest(id, finance.Category(req.Category), amount, req)
	if err != nil {
		h.writeDomainError(w, "Invalid transaction", err)
		return
	}
	if err := h.Store.Append(ctx, tx); err != nil {
		h.writeDomainError(w, "Failed to record transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// BILLING AND DASHBOARD HANDLERS
// =============================================================================

// RunBilling triggers the monthly billing batch. Safe to call repeatedly.
func (h *Handler) RunBilling(w http.ResponseWriter, r *http.Request) {
	var req RunBillingRequest
	if r.ContentLength > 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}

	runDate := h.today()
	if req.RunDate != "" {
		var err error
		if runDate, err = timetable.ParseDate(req.RunDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid run_date (use YYYY-MM-DD)", err)
			return
		}
	}

	report, err := h.Billing.Run(r.Context(), runDate)
	if err != nil {
		h.writeDomainError(w, "Billing batch failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingReportDTO(report))
}

// GetDashboardStats aggregates debtors, total debt, and due-soon counts
// across every active enrollment.
func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.today()

	enrollments, err := h.Store.ActiveEnrollments(ctx, today)
	if err != nil {
		h.writeDomainError(w, "Failed to load enrollments", err)
		return
	}

	stats := DashboardStatsDTO{ActiveEnrollments: len(enrollments)}
	totalDebt := decimal.Zero
	for _, be := range enrollments {
		balance, err := h.Calc.Balance(ctx, be.Enrollment.ID)
		if err != nil {
			h.writeDomainError(w, "Failed to compute balance", err)
			return
		}
		if balance.IsNegative() {
			stats.Debtors++
			totalDebt = totalDebt.Add(balance.Neg())
		}

		dueSoon, err := h.Calc.DueSoon(ctx, be.Enrollment.ID, today)
		if err != nil {
			h.writeDomainError(w, "Failed to compute due-soon", err)
			return
		}
		if dueSoon {
			stats.DueSoon++
		}
	}
	stats.TotalDebt = totalDebt.String()
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

// decode reads and validates a JSON body. Writes the 400 itself and
// returns false when the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// loadGroup fetches the {id} group or writes the error response.
func (h *Handler) loadGroup(w http.ResponseWriter, r *http.Request) (timetable.Group, bool) {
	g, err := h.Store.GetGroup(r.Context(), timetable.GroupID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Group lookup failed", err)
		return timetable.Group{}, false
	}
	return g, true
}

// parseRange reads ?start_date=&end_date=, or ?month=YYYY-MM, defaulting
// to the current month.
func (h *Handler) parseRange(r *http.Request) (timetable.DateRange, error) {
	q := r.URL.Query()

	if start := q.Get("start_date"); start != "" {
		from, err := timetable.ParseDate(start)
		if err != nil {
			return timetable.DateRange{}, err
		}
		to, err := timetable.ParseDate(q.Get("end_date"))
		if err != nil {
			return timetable.DateRange{}, err
		}
		if from.After(to) {
			return timetable.DateRange{}, timetable.ErrInvalidDateRange
		}
		return timetable.DateRange{Start: from, End: to}, nil
	}

	if month := q.Get("month"); month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return timetable.DateRange{}, fmt.Errorf("invalid month %q: %w", month, err)
		}
		return timetable.DateRange{
			Start: timetable.StartOfMonth(t.Year(), t.Month()),
			End:   timetable.EndOfMonth(t.Year(), t.Month()),
		}, nil
	}

	today := h.today()
	return timetable.DateRange{
		Start: timetable.StartOfMonth(today.Year, today.Month),
		End:   timetable.EndOfMonth(today.Year, today.Month),
	}, nil
}

func groupFromRequest(name, roomID, weekdays, startDate, endDate, startTime, endTime string) (timetable.Group, error) {
	ws, err := timetable.ParseWeekdays(weekdays)
	if err != nil {
		return timetable.Group{}, err
	}
	start, err := timetable.ParseDate(startDate)
	if err != nil {
		return timetable.Group{}, err
	}
	end, err := timetable.ParseDate(endDate)
	if err != nil {
		return timetable.Group{}, err
	}
	from, err := timetable.ParseTimeOfDay(startTime)
	if err != nil {
		return timetable.Group{}, err
	}
	until, err := timetable.ParseTimeOfDay(endTime)
	if err != nil {
		return timetable.Group{}, err
	}

	g := timetable.Group{
		Name:      name,
		RoomID:    roomID,
		Weekdays:  ws,
		StartDate: start,
		EndDate:   end,
		StartTime: from,
		EndTime:   until,
	}
	return g, g.Validate()
}

func overrideFromRequest(groupID timetable.GroupID, req CreateOverrideRequest) (timetable.Override, error) {
	parseDate := func(s string) (timetable.Date, error) {
		if s == "" {
			return timetable.Date{}, nil
		}
		return timetable.ParseDate(s)
	}
	parseTime := func(s string) (timetable.TimeOfDay, error) {
		if s == "" {
			return 0, nil
		}
		return timetable.ParseTimeOfDay(s)
	}

	original, err := parseDate(req.OriginalDate)
	if err != nil {
		return timetable.Override{}, err
	}
	newDate, err := parseDate(req.NewDate)
	if err != nil {
		return timetable.Override{}, err
	}
	start, err := parseTime(req.NewStartTime)
	if err != nil {
		return timetable.Override{}, err
	}
	end, err := parseTime(req.NewEndTime)
	if err != nil {
		return timetable.Override{}, err
	}

	o := timetable.Override{
		GroupID:      groupID,
		Kind:         timetable.OverrideKind(req.Kind),
		OriginalDate: original,
		NewDate:      newDate,
		NewStartTime: start,
		NewEndTime:   end,
		Reason:       req.Reason,
	}
	return o, o.Validate()
}

func transactionFromRequest(id finance.EnrollmentID, category finance.Category, amount decimal.Decimal, req CreateTransactionRequest) (finance.Transaction, error) {
	now := time.Now()
	var tx finance.Transaction
	switch category {
	case finance.CategoryPayment:
		tx = finance.NewPayment(id, amount, req.PaymentMethod, req.ReceiverID, req.Comment, now)
	case finance.CategoryDiscount:
		tx = finance.NewDiscount(id, amount, req.Comment, now)
	case finance.CategoryBonus:
		tx = finance.NewBonus(id, amount, req.Comment, now)
	case finance.CategoryRefund:
		tx = finance.NewRefund(id, amount, req.Comment, now)
	case finance.CategoryOtherFee:
		tx = finance.NewOtherFee(id, amount, req.Comment, now)
	case finance.CategoryMonthlyFee:
		// Monthly fees come from the billing batch, not ad-hoc entry.
		return finance.Transaction{}, &finance.TransactionError{
			Category: category, Detail: "monthly fees are created by the billing batch"}
	default:
		return finance.Transaction{}, &finance.TransactionError{
			Category: category, Detail: "unknown category"}
	}
	return tx, tx.Validate()
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case timetable.IsNotFound(err) || finance.IsNotFound(err):
		status = http.StatusNotFound
	case timetable.IsConflict(err) || finance.IsDuplicate(err):
		status = http.StatusConflict
	case timetable.IsClientError(err) || finance.IsClientError(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error().Err(err).Msg(message)
	}
	writeError(w, status, message, err)
}
