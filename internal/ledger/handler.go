package ledger

import (
	"context"
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

// Handler wires the ledger JSON endpoints: chart management, manual
// journal posting, reversal, and the derived reports.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	cache     *ReportCache
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cache *ReportCache) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		cache:     cache,
		validator: validator.New(),
	}
}

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/companies/{companyID}", func(r chi.Router) {
		r.Post("/chart/init", h.initChart)
		r.Get("/accounts", h.listAccounts)
		r.Post("/accounts", h.createAccount)
		r.Delete("/accounts/{accountID}", h.deactivateAccount)
		r.Get("/accounts/{accountID}/balance", h.accountBalance)

		r.Post("/vouchers", h.postVoucher)
		r.Get("/vouchers/{voucherID}", h.getVoucher)
		r.Post("/vouchers/{voucherID}/reverse", h.reverseVoucher)

		r.Get("/reports/trial-balance", h.trialBalance)
		r.Get("/reports/profit-and-loss", h.profitAndLoss)
		r.Get("/reports/balance-sheet", h.balanceSheet)
		r.Get("/reports/day-book", h.dayBook)
		r.Get("/customers/{customerID}/statement", h.customerStatement)
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validation(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

func queryDate(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, shared.Validation(fmt.Sprintf("%s must be YYYY-MM-DD", name))
	}
	return parsed, nil
}

type createAccountRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=ASSET LIABILITY INCOME EXPENSE EQUITY"`
	ParentID *int64 `json:"parent_id"`
}

type accountResponse struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parent_id,omitempty"`
	IsActive bool   `json:"is_active"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID:       a.ID,
		Code:     a.Code,
		Name:     a.Name,
		Type:     string(a.Type),
		ParentID: a.ParentID,
		IsActive: a.IsActive,
	}
}

func (h *Handler) initChart(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.InitChartOfAccounts(r.Context(), companyID)
	if err != nil {
		h.logger.Error("init chart", slog.Int64("company_id", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(created))
	for _, a := range created {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"created": out})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("malformed JSON body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	account, err := h.service.CreateAccount(r.Context(), CreateAccountInput{
		CompanyID: companyID,
		Code:      req.Code,
		Name:      req.Name,
		Type:      AccountType(req.Type),
		ParentID:  req.ParentID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := pathID(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeactivateAccount(r.Context(), companyID, accountID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := pathID(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.service.AccountBalance(r.Context(), companyID, accountID, asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"as_of":      asOf.Format(dateLayout),
		"balance":    balance,
	})
}

type postEntryRequest struct {
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
	Direction string `json:"direction" validate:"required,oneof=DR CR"`
	Amount    string `json:"amount" validate:"required"`
	Narration string `json:"narration"`
}

type postVoucherRequest struct {
	Type      string             `json:"type" validate:"required"`
	Date      string             `json:"date" validate:"required"`
	Narration string             `json:"narration"`
	Entries   []postEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

type voucherResponse struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Date      string          `json:"date"`
	Narration string          `json:"narration"`
	Entries   []entryResponse `json:"entries"`
}

type entryResponse struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	Direction string `json:"direction"`
	Amount    string `json:"amount"`
	Narration string `json:"narration,omitempty"`
}

func toVoucherResponse(v Voucher) voucherResponse {
	out := voucherResponse{
		ID:        v.ID,
		Type:      string(v.Type),
		Date:      v.Date.Format(dateLayout),
		Narration: v.Narration,
	}
	for _, e := range v.Entries {
		out.Entries = append(out.Entries, entryResponse{
			ID:        e.ID,
			AccountID: e.AccountID,
			Direction: string(e.Direction),
			Amount:    e.Amount.StringFixed(2),
			Narration: e.Narration,
		})
	}
	return out
}

func (h *Handler) postVoucher(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req postVoucherRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("malformed JSON body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httpx.RespondError(w, shared.Validation("date must be YYYY-MM-DD"))
		return
	}
	input := PostingInput{
		CompanyID: companyID,
		Type:      VoucherType(req.Type),
		Date:      date,
		Narration: req.Narration,
		ActorID:   shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Entries {
		amount, err := decimal.NewFromString(line.Amount)
		if err != nil {
			httpx.RespondError(w, shared.Validation(fmt.Sprintf("invalid amount %q", line.Amount)))
			return
		}
		input.Entries = append(input.Entries, EntryInput{
			AccountID: line.AccountID,
			Direction: Direction(line.Direction),
			Amount:    amount,
			Narration: line.Narration,
		})
	}
	voucher, err := h.service.Post(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toVoucherResponse(voucher))
}

func (h *Handler) getVoucher(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	voucherID, err := pathID(r, "voucherID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var voucher Voucher
	err = h.service.repo.WithTx(r.Context(), func(ctx context.Context, tx TxRepository) error {
		var e error
		voucher, e = tx.GetVoucherWithEntries(ctx, companyID, voucherID)
		return e
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVoucherResponse(voucher))
}

type reverseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) reverseVoucher(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	voucherID, err := pathID(r, "voucherID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("malformed JSON body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	voucher, err := h.service.Reverse(r.Context(), companyID, voucherID, shared.ActorFromContext(r.Context()), req.Reason)
	if err != nil {
		h.logger.Error("reverse voucher", slog.Int64("voucher_id", voucherID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toVoucherResponse(voucher))
}

func (h *Handler) respondCached(w http.ResponseWriter, r *http.Request, companyID int64, key string, build func() (any, error)) {
	payload, err := h.cache.GetJSON(r.Context(), companyID, key, func(context.Context) (any, error) {
		return build()
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondCached(w, r, companyID, "tb:"+asOf.Format(dateLayout), func() (any, error) {
		return h.service.TrialBalance(r.Context(), companyID, asOf)
	})
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	now := time.Now()
	from, err := queryDate(r, "from", time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := queryDate(r, "to", now)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := fmt.Sprintf("pl:%s:%s", from.Format(dateLayout), to.Format(dateLayout))
	h.respondCached(w, r, companyID, key, func() (any, error) {
		return h.service.ProfitAndLoss(r.Context(), companyID, from, to)
	})
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondCached(w, r, companyID, "bs:"+asOf.Format(dateLayout), func() (any, error) {
		return h.service.BalanceSheet(r.Context(), companyID, asOf)
	})
}

func (h *Handler) dayBook(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	day, err := queryDate(r, "date", time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondCached(w, r, companyID, "db:"+day.Format(dateLayout), func() (any, error) {
		return h.service.DayBook(r.Context(), companyID, day)
	})
}

func (h *Handler) customerStatement(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customerID, err := pathID(r, "customerID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	now := time.Now()
	from, err := queryDate(r, "from", now.AddDate(-1, 0, 0))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := queryDate(r, "to", now)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	statement, err := h.service.CustomerStatement(r.Context(), companyID, customerID, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}
