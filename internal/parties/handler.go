package parties

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pawnbook/pawnbook/internal/platform/httpx"
	"github.com/pawnbook/pawnbook/internal/shared"
)

// Handler manages master data endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/companies/{companyID}", func(r chi.Router) {
		r.Get("/customers", h.listCustomers)
		r.Post("/customers", h.createCustomer)
		r.Get("/customers/{customerID}", h.showCustomer)
		r.Put("/customers/{customerID}", h.updateCustomer)
		r.Delete("/customers/{customerID}", h.deleteCustomer)

		r.Get("/schemes", h.listSchemes)
		r.Post("/schemes", h.createScheme)
		r.Get("/schemes/{schemeID}", h.showScheme)
		r.Put("/schemes/{schemeID}", h.updateScheme)
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validation(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

type customerRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

func (h *Handler) decodeCustomer(r *http.Request, companyID int64) (CustomerInput, error) {
	var req customerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return CustomerInput{}, shared.Validation("malformed JSON body")
	}
	if err := h.validator.Struct(req); err != nil {
		return CustomerInput{}, shared.Validation(err.Error())
	}
	return CustomerInput{CompanyID: companyID, Name: req.Name, Phone: req.Phone}, nil
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeCustomer(r, companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customer, err := h.service.CreateCustomer(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) showCustomer(w http.ResponseWriter, r *http.Request) {
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
	customer, err := h.service.GetCustomer(r.Context(), companyID, customerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
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
	input, err := h.decodeCustomer(r, companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customer, err := h.service.UpdateCustomer(r.Context(), companyID, customerID, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.DeleteCustomer(r.Context(), companyID, customerID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customers, err := h.service.ListCustomers(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": customers})
}

type schemeRequest struct {
	Name           string `json:"name" validate:"required"`
	MonthlyRatePct string `json:"monthly_rate_pct" validate:"required"`
	DurationMonths int    `json:"duration_months" validate:"required,gt=0"`
}

func (h *Handler) decodeScheme(r *http.Request, companyID int64) (SchemeInput, error) {
	var req schemeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return SchemeInput{}, shared.Validation("malformed JSON body")
	}
	if err := h.validator.Struct(req); err != nil {
		return SchemeInput{}, shared.Validation(err.Error())
	}
	rate, err := decimal.NewFromString(req.MonthlyRatePct)
	if err != nil {
		return SchemeInput{}, shared.Validation("invalid monthly_rate_pct")
	}
	return SchemeInput{
		CompanyID:      companyID,
		Name:           req.Name,
		MonthlyRatePct: rate,
		DurationMonths: req.DurationMonths,
	}, nil
}

func (h *Handler) createScheme(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeScheme(r, companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scheme, err := h.service.CreateScheme(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, scheme)
}

func (h *Handler) showScheme(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	schemeID, err := pathID(r, "schemeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scheme, err := h.service.GetScheme(r.Context(), companyID, schemeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, scheme)
}

func (h *Handler) updateScheme(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	schemeID, err := pathID(r, "schemeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeScheme(r, companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scheme, err := h.service.UpdateScheme(r.Context(), companyID, schemeID, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, scheme)
}

func (h *Handler) listSchemes(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	schemes, err := h.service.ListSchemes(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schemes": schemes})
}
