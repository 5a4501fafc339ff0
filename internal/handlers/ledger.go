package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/exsplitter/backend/internal/calculator"
	"github.com/exsplitter/backend/internal/ledger"
	"github.com/exsplitter/backend/internal/middleware"
	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/service"
	"github.com/exsplitter/backend/internal/settlement"
)

// LedgerHandler exposes expenses, derived transfers, pair balances and the
// settlement lifecycle. Amounts cross the wire as decimal strings; floats
// never touch money.
type LedgerHandler struct {
	ledger   *service.LedgerService
	validate *validator.Validate
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, validate: validator.New()}
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ledger.ErrInvalidAmount, s)
	}
	return d, nil
}

type expenseRequest struct {
	Title          string            `json:"title" validate:"required"`
	PayerID        string            `json:"payer_id" validate:"required"`
	Amount         string            `json:"amount" validate:"required"`
	Currency       string            `json:"currency" validate:"required,len=3"`
	Date           int64             `json:"date"`
	SplitMemberIDs []string          `json:"split_member_ids" validate:"required,min=1"`
	Splits         map[string]string `json:"splits" validate:"required"`
	PayerEarned    string            `json:"payer_earned"`
}

func (req *expenseRequest) toInput(tripID string) (service.ExpenseInput, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return service.ExpenseInput{}, err
	}
	payerEarned := decimal.Zero
	if req.PayerEarned != "" {
		if payerEarned, err = parseAmount(req.PayerEarned); err != nil {
			return service.ExpenseInput{}, err
		}
	}
	splits := make(map[string]decimal.Decimal, len(req.Splits))
	for memberID, raw := range req.Splits {
		share, err := parseAmount(raw)
		if err != nil {
			return service.ExpenseInput{}, err
		}
		splits[memberID] = share
	}
	return service.ExpenseInput{
		TripID:         tripID,
		Title:          req.Title,
		PayerID:        req.PayerID,
		Amount:         amount,
		Currency:       req.Currency,
		Date:           req.Date,
		SplitMemberIDs: req.SplitMemberIDs,
		Splits:         splits,
		PayerEarned:    payerEarned,
	}, nil
}

type expenseResponse struct {
	ID             string            `json:"id"`
	TripID         string            `json:"trip_id"`
	Title          string            `json:"title"`
	PayerID        string            `json:"payer_id"`
	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	Date           int64             `json:"date"`
	SplitMemberIDs []string          `json:"split_member_ids"`
	Splits         map[string]string `json:"splits"`
	PayerEarned    string            `json:"payer_earned"`
}

func toExpenseResponse(e *models.Expense) expenseResponse {
	splits := make(map[string]string, len(e.Splits))
	for memberID, share := range e.Splits {
		splits[memberID] = share.String()
	}
	return expenseResponse{
		ID:             e.ID,
		TripID:         e.TripID,
		Title:          e.Title,
		PayerID:        e.PayerID,
		Amount:         e.Amount.String(),
		Currency:       e.Currency,
		Date:           e.Date,
		SplitMemberIDs: e.SplitMemberIDs,
		Splits:         splits,
		PayerEarned:    e.PayerEarned.String(),
	}
}

// CreateExpense handles POST /trips/{tripID}/expenses.
func (h *LedgerHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	in, err := req.toInput(chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, err)
		return
	}

	expense, err := h.ledger.CreateExpense(r.Context(), middleware.GetMemberID(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

// ReplaceExpense handles PUT /trips/{tripID}/expenses/{expenseID}.
func (h *LedgerHandler) ReplaceExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	in, err := req.toInput(chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, err)
		return
	}

	expense, err := h.ledger.ReplaceExpense(r.Context(), middleware.GetMemberID(r.Context()), chi.URLParam(r, "expenseID"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

// DeleteExpense handles DELETE /trips/{tripID}/expenses/{expenseID}.
func (h *LedgerHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	err := h.ledger.DeleteExpense(r.Context(), middleware.GetMemberID(r.Context()), chi.URLParam(r, "tripID"), chi.URLParam(r, "expenseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// PreviewSplit handles POST /split/preview: compute equal shares without
// persisting, so clients can show the breakdown before saving.
func (h *LedgerHandler) PreviewSplit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount    string   `json:"amount" validate:"required"`
		Currency  string   `json:"currency" validate:"required,len=3"`
		PayerID   string   `json:"payer_id" validate:"required"`
		MemberIDs []string `json:"member_ids" validate:"required,min=1"`
	}
	if !decode(w, r, h.validate, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.ledger.PreviewEqualSplit(amount, req.Currency, req.PayerID, req.MemberIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	shares := make(map[string]string, len(result.Shares))
	for memberID, share := range result.Shares {
		shares[memberID] = share.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shares":       shares,
		"payer_earned": result.PayerEarned.String(),
	})
}

type transferResponse struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Amount string `json:"amount"`
}

func toTransferResponses(transfers []calculator.Transfer) []transferResponse {
	out := make([]transferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, transferResponse{FromID: t.FromID, ToID: t.ToID, Amount: t.Amount.String()})
	}
	return out
}

// Transfers handles GET /trips/{tripID}/transfers?currency=JPY&simplified=true.
func (h *LedgerHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")
	simplified := r.URL.Query().Get("simplified") == "true"

	transfers, err := h.ledger.Transfers(r.Context(), middleware.GetMemberID(r.Context()), chi.URLParam(r, "tripID"), currency, simplified)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currency":  currency,
		"transfers": toTransferResponses(transfers),
	})
}

type paymentResponse struct {
	ID              string   `json:"id"`
	DebtorID        string   `json:"debtor_id"`
	CreditorID      string   `json:"creditor_id"`
	Amount          string   `json:"amount"`
	AmountReceived  string   `json:"amount_received"`
	ChangeGivenBack string   `json:"change_given_back"`
	AmountTreated   string   `json:"amount_treated"`
	Currency        string   `json:"currency"`
	Allocation      string   `json:"allocation"`
	ExpenseIDs      []string `json:"expense_ids,omitempty"`
	Date            int64    `json:"date"`
	Note            string   `json:"note,omitempty"`
}

func allocationName(kind models.AllocationKind) string {
	switch kind {
	case models.AllocationAllOutstanding:
		return "all_outstanding"
	case models.AllocationForExpenses:
		return "for_expenses"
	default:
		return "unallocated"
	}
}

func allocationKind(name string) (models.AllocationKind, error) {
	switch name {
	case "", "unallocated":
		return models.AllocationUnallocated, nil
	case "all_outstanding":
		return models.AllocationAllOutstanding, nil
	case "for_expenses":
		return models.AllocationForExpenses, nil
	}
	return 0, fmt.Errorf("%w: unknown allocation %q", ledger.ErrStaleReference, name)
}

func toPaymentResponse(p *models.Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		DebtorID:        p.DebtorID,
		CreditorID:      p.CreditorID,
		Amount:          p.Amount.String(),
		AmountReceived:  p.AmountReceived.String(),
		ChangeGivenBack: p.ChangeGivenBack.String(),
		AmountTreated:   p.AmountTreated.String(),
		Currency:        p.Currency,
		Allocation:      allocationName(p.Allocation.Kind),
		ExpenseIDs:      p.Allocation.ExpenseIDs,
		Date:            p.Date,
		Note:            p.Note,
	}
}

// Pair handles GET /trips/{tripID}/pairs/{debtorID}/{creditorID}?currency=JPY.
func (h *LedgerHandler) Pair(w http.ResponseWriter, r *http.Request) {
	detail, err := h.ledger.Pair(r.Context(), middleware.GetMemberID(r.Context()),
		chi.URLParam(r, "tripID"), chi.URLParam(r, "debtorID"), chi.URLParam(r, "creditorID"),
		r.URL.Query().Get("currency"))
	if err != nil {
		writeError(w, err)
		return
	}

	payments := make([]paymentResponse, 0, len(detail.ActivePayments))
	for i := range detail.ActivePayments {
		payments = append(payments, toPaymentResponse(&detail.ActivePayments[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"debtor_id":       detail.DebtorID,
		"creditor_id":     detail.CreditorID,
		"currency":        detail.Currency,
		"total_owed":      detail.TotalOwed.String(),
		"amount_paid":     detail.AmountPaid.String(),
		"still_owed":      detail.StillOwed.String(),
		"status":          detail.Status,
		"active_payments": payments,
	})
}

// RecordPayment handles POST /trips/{tripID}/pairs/{debtorID}/{creditorID}/payments.
func (h *LedgerHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AmountReceived string   `json:"amount_received" validate:"required"`
		Currency       string   `json:"currency" validate:"required,len=3"`
		Allocation     string   `json:"allocation" validate:"omitempty,oneof=unallocated all_outstanding for_expenses"`
		ExpenseIDs     []string `json:"expense_ids"`
		Date           int64    `json:"date"`
		Note           string   `json:"note"`
	}
	if !decode(w, r, h.validate, &req) {
		return
	}

	amount, err := parseAmount(req.AmountReceived)
	if err != nil {
		writeError(w, err)
		return
	}
	kind, err := allocationKind(req.Allocation)
	if err != nil {
		writeError(w, err)
		return
	}

	payment, err := h.ledger.RecordPayment(r.Context(), middleware.GetMemberID(r.Context()), chi.URLParam(r, "tripID"), settlement.PaymentInput{
		DebtorID:       chi.URLParam(r, "debtorID"),
		CreditorID:     chi.URLParam(r, "creditorID"),
		AmountReceived: amount,
		Currency:       req.Currency,
		Allocation:     models.Allocation{Kind: kind, ExpenseIDs: req.ExpenseIDs},
		Date:           req.Date,
		Note:           req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

// ToggleMark handles POST /trips/{tripID}/pairs/{debtorID}/{creditorID}/marks/{expenseID}.
func (h *LedgerHandler) ToggleMark(w http.ResponseWriter, r *http.Request) {
	nowSet, err := h.ledger.ToggleExpenseMark(r.Context(), middleware.GetMemberID(r.Context()),
		chi.URLParam(r, "tripID"), chi.URLParam(r, "debtorID"), chi.URLParam(r, "creditorID"),
		chi.URLParam(r, "expenseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"marked": nowSet})
}

// MarkFullyPaid handles POST /trips/{tripID}/pairs/{debtorID}/{creditorID}/settle.
func (h *LedgerHandler) MarkFullyPaid(w http.ResponseWriter, r *http.Request) {
	err := h.ledger.MarkFullyPaid(r.Context(), middleware.GetMemberID(r.Context()),
		chi.URLParam(r, "tripID"), chi.URLParam(r, "debtorID"), chi.URLParam(r, "creditorID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// UnmarkFullyPaid handles DELETE /trips/{tripID}/pairs/{debtorID}/{creditorID}/settle.
func (h *LedgerHandler) UnmarkFullyPaid(w http.ResponseWriter, r *http.Request) {
	err := h.ledger.UnmarkFullyPaid(r.Context(), middleware.GetMemberID(r.Context()),
		chi.URLParam(r, "tripID"), chi.URLParam(r, "debtorID"), chi.URLParam(r, "creditorID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// Record handles GET /trips/{tripID}/record?currency=JPY: the caller's
// creditor-side audit aggregates.
func (h *LedgerHandler) Record(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ledger.MemberRecord(r.Context(), middleware.GetMemberID(r.Context()),
		chi.URLParam(r, "tripID"), r.URL.Query().Get("currency"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"change_given_back": rec.ChangeGivenBack.String(),
		"amount_treated":    rec.AmountTreated.String(),
	})
}
