package pledge

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pawnbook/pawnbook/internal/platform/httpx"
	"github.com/pawnbook/pawnbook/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler wires the pledge and payment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers pledge routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/companies/{companyID}/pledges", func(r chi.Router) {
		r.Post("/", h.disburse)
		r.Get("/{pledgeID}", h.showPledge)
		r.Get("/{pledgeID}/quote", h.quote)
		r.Post("/{pledgeID}/payments", h.recordPayment)
		r.Put("/{pledgeID}/payments/{paymentID}", h.updatePayment)
		r.Delete("/{pledgeID}/payments/{paymentID}", h.deletePayment)
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validation(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, shared.Validation(fmt.Sprintf("invalid %s", field))
	}
	return v, nil
}

type disburseRequest struct {
	CustomerID      int64  `json:"customer_id" validate:"required,gt=0"`
	SchemeID        int64  `json:"scheme_id" validate:"required,gt=0"`
	PledgeNo        string `json:"pledge_no" validate:"required"`
	Principal       string `json:"principal" validate:"required"`
	DocumentCharges string `json:"document_charges"`
	PledgeDate      string `json:"pledge_date" validate:"required"`
	Narration       string `json:"narration"`
}

type pledgeResponse struct {
	ID                 int64  `json:"id"`
	PledgeNo           string `json:"pledge_no"`
	CustomerID         int64  `json:"customer_id"`
	Principal          string `json:"principal"`
	MonthlyRatePct     string `json:"monthly_rate_pct"`
	FirstMonthInterest string `json:"first_month_interest"`
	DocumentCharges    string `json:"document_charges"`
	FinalAmount        string `json:"final_amount"`
	Status             string `json:"status"`
	PledgeDate         string `json:"pledge_date"`
	DueDate            string `json:"due_date"`
}

func toPledgeResponse(p Pledge) pledgeResponse {
	return pledgeResponse{
		ID:                 p.ID,
		PledgeNo:           p.PledgeNo,
		CustomerID:         p.CustomerID,
		Principal:          p.Principal.StringFixed(2),
		MonthlyRatePct:     p.MonthlyRatePct.String(),
		FirstMonthInterest: p.FirstMonthInterest.StringFixed(2),
		DocumentCharges:    p.DocumentCharges.StringFixed(2),
		FinalAmount:        p.FinalAmount.StringFixed(2),
		Status:             string(p.Status),
		PledgeDate:         p.PledgeDate.Format(dateLayout),
		DueDate:            p.DueDate.Format(dateLayout),
	}
}

func (h *Handler) disburse(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req disburseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("malformed JSON body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	principal, err := parseAmount("principal", req.Principal)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	charges, err := parseAmount("document_charges", req.DocumentCharges)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := time.Parse(dateLayout, req.PledgeDate)
	if err != nil {
		httpx.RespondError(w, shared.Validation("pledge_date must be YYYY-MM-DD"))
		return
	}
	pledge, err := h.service.Disburse(r.Context(), DisburseInput{
		CompanyID:       companyID,
		CustomerID:      req.CustomerID,
		SchemeID:        req.SchemeID,
		PledgeNo:        req.PledgeNo,
		Principal:       principal,
		DocumentCharges: charges,
		PledgeDate:      date,
		Narration:       req.Narration,
		ActorID:         shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("disburse pledge", slog.String("pledge_no", req.PledgeNo), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPledgeResponse(pledge))
}

func (h *Handler) showPledge(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pledgeID, err := pathID(r, "pledgeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pledge, payments, err := h.service.GetPledge(r.Context(), companyID, pledgeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"pledge":   toPledgeResponse(pledge),
		"payments": out,
	})
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pledgeID, err := pathID(r, "pledgeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = time.Parse(dateLayout, raw); err != nil {
			httpx.RespondError(w, shared.Validation("as_of must be YYYY-MM-DD"))
			return
		}
	}
	quote, err := h.service.SettlementQuote(r.Context(), companyID, pledgeID, asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(quote))
}

type quotePeriodResponse struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Days      int    `json:"days"`
	RatePct   string `json:"rate_pct"`
	Amount    string `json:"amount"`
	Mandatory bool   `json:"mandatory"`
}

type quoteResponse struct {
	AsOf               string                `json:"as_of"`
	TotalInterest      string                `json:"total_interest"`
	PaidInterest       string                `json:"paid_interest"`
	PaidPrincipal      string                `json:"paid_principal"`
	RemainingInterest  string                `json:"remaining_interest"`
	RemainingPrincipal string                `json:"remaining_principal"`
	FinalAmount        string                `json:"final_amount"`
	Breakdown          []quotePeriodResponse `json:"breakdown"`
}

func toQuoteResponse(q Quote) quoteResponse {
	out := quoteResponse{
		AsOf:               q.AsOf.Format(dateLayout),
		TotalInterest:      q.TotalInterest.StringFixed(2),
		PaidInterest:       q.PaidInterest.StringFixed(2),
		PaidPrincipal:      q.PaidPrincipal.StringFixed(2),
		RemainingInterest:  q.RemainingInterest.StringFixed(2),
		RemainingPrincipal: q.RemainingPrincipal.StringFixed(2),
		FinalAmount:        q.FinalAmount.StringFixed(2),
	}
	for _, p := range q.Breakdown {
		out.Breakdown = append(out.Breakdown, quotePeriodResponse{
			From:      p.From.Format(dateLayout),
			To:        p.To.Format(dateLayout),
			Days:      p.Days,
			RatePct:   p.RatePct.String(),
			Amount:    p.Amount.StringFixed(2),
			Mandatory: p.Mandatory,
		})
	}
	return out
}

type paymentRequest struct {
	Date      string `json:"date" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Interest  string `json:"interest"`
	Principal string `json:"principal"`
	Penalty   string `json:"penalty"`
	Discount  string `json:"discount"`
	Method    string `json:"method"`
	ReceiptNo string `json:"receipt_no" validate:"required"`
	Note      string `json:"note"`
}

type paymentResponse struct {
	ID            int64  `json:"id"`
	VoucherID     int64  `json:"voucher_id"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	Interest      string `json:"interest"`
	Principal     string `json:"principal"`
	Penalty       string `json:"penalty"`
	Discount      string `json:"discount"`
	BalanceAmount string `json:"balance_amount"`
	Method        string `json:"method,omitempty"`
	ReceiptNo     string `json:"receipt_no"`
	Note          string `json:"note,omitempty"`
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		VoucherID:     p.VoucherID,
		Date:          p.Date.Format(dateLayout),
		Amount:        p.Amount.StringFixed(2),
		Interest:      p.Interest.StringFixed(2),
		Principal:     p.Principal.StringFixed(2),
		Penalty:       p.Penalty.StringFixed(2),
		Discount:      p.Discount.StringFixed(2),
		BalanceAmount: p.BalanceAmount.StringFixed(2),
		Method:        p.Method,
		ReceiptNo:     p.ReceiptNo,
		Note:          p.Note,
	}
}

func (h *Handler) decodePayment(r *http.Request, companyID, pledgeID int64) (PaymentInput, error) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return PaymentInput{}, shared.Validation("malformed JSON body")
	}
	if err := h.validator.Struct(req); err != nil {
		return PaymentInput{}, shared.Validation(err.Error())
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return PaymentInput{}, shared.Validation("date must be YYYY-MM-DD")
	}
	in := PaymentInput{
		CompanyID: companyID,
		PledgeID:  pledgeID,
		Date:      date,
		Method:    req.Method,
		ReceiptNo: req.ReceiptNo,
		Note:      req.Note,
		ActorID:   shared.ActorFromContext(r.Context()),
	}
	for field, dst := range map[string]*decimal.Decimal{
		"amount": &in.Amount, "interest": &in.Interest, "principal": &in.Principal,
		"penalty": &in.Penalty, "discount": &in.Discount,
	} {
		raw := map[string]string{
			"amount": req.Amount, "interest": req.Interest, "principal": req.Principal,
			"penalty": req.Penalty, "discount": req.Discount,
		}[field]
		if *dst, err = parseAmount(field, raw); err != nil {
			return PaymentInput{}, err
		}
	}
	return in, nil
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pledgeID, err := pathID(r, "pledgeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodePayment(r, companyID, pledgeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		h.logger.Error("record payment", slog.Int64("pledge_id", pledgeID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pledgeID, err := pathID(r, "pledgeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	paymentID, err := pathID(r, "paymentID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodePayment(r, companyID, pledgeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.UpdatePayment(r.Context(), paymentID, input)
	if err != nil {
		h.logger.Error("update payment", slog.Int64("payment_id", paymentID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := pathID(r, "pledgeID"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	paymentID, err := pathID(r, "paymentID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeletePayment(r.Context(), companyID, paymentID, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
