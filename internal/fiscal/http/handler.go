// Package fiscalhttp exposes the year close/open endpoints.
package fiscalhttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pawnbook/pawnbook/internal/fiscal"
	"github.com/pawnbook/pawnbook/internal/ledger"
	"github.com/pawnbook/pawnbook/internal/platform/httpx"
	"github.com/pawnbook/pawnbook/internal/shared"
)

type fiscalService interface {
	CloseYear(ctx context.Context, in fiscal.CloseInput) (ledger.Voucher, error)
	OpenYear(ctx context.Context, in fiscal.CloseInput) (ledger.Voucher, error)
}

// Handler wires the year close/open endpoints.
type Handler struct {
	logger    *slog.Logger
	service   fiscalService
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service fiscalService) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers fiscal routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/companies/{companyID}/years/{startYear}", func(r chi.Router) {
		r.Post("/close", h.closeYear)
		r.Post("/open", h.openYear)
	})
}

// yearRequest carries the explicit human confirmation. The token is a
// deliberate anti-accident control; a missing or wrong value rejects the
// request before anything is read.
type yearRequest struct {
	Confirm string `json:"confirm" validate:"required"`
}

func (h *Handler) closeYear(w http.ResponseWriter, r *http.Request) {
	h.runYearOp(w, r, "close", h.service.CloseYear)
}

func (h *Handler) openYear(w http.ResponseWriter, r *http.Request) {
	h.runYearOp(w, r, "open", h.service.OpenYear)
}

func (h *Handler) runYearOp(w http.ResponseWriter, r *http.Request, op string,
	run func(context.Context, fiscal.CloseInput) (ledger.Voucher, error)) {
	companyID, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.RespondError(w, shared.Validation("invalid companyID"))
		return
	}
	startYear, err := strconv.Atoi(chi.URLParam(r, "startYear"))
	if err != nil || startYear < 1900 {
		httpx.RespondError(w, shared.Validation("invalid startYear"))
		return
	}
	var req yearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("malformed JSON body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	voucher, err := run(r.Context(), fiscal.CloseInput{
		CompanyID: companyID,
		StartYear: startYear,
		Confirm:   req.Confirm,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("year "+op,
			slog.Int64("company_id", companyID),
			slog.Int("start_year", startYear),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"voucher_id": voucher.ID,
		"type":       string(voucher.Type),
		"date":       voucher.Date.Format("2006-01-02"),
		"entries":    len(voucher.Entries),
	})
}
