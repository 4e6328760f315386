// Package wiphttp serves the profitability report over HTTP. Authentication
// and permission checks happen upstream of this router.
package wiphttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/praxis-erp/praxis/internal/platform/httpx"
	"github.com/praxis-erp/praxis/internal/wip"
)

// ReportService is the engine contract the handler depends on.
type ReportService interface {
	Report(ctx context.Context, q wip.Query) (*wip.Report, error)
}

// Handler coordinates HTTP requests for profitability reports.
type Handler struct {
	logger   *slog.Logger
	service  ReportService
	validate *validator.Validate
}

// NewHandler constructs the profitability HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

type reportParams struct {
	ClientCode  string `validate:"required,max=32"`
	Mode        string `validate:"omitempty,oneof=fiscal custom"`
	FiscalYear  string `validate:"omitempty,numeric"`
	FiscalMonth string `validate:"omitempty,alpha"`
	StartDate   string `validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `validate:"omitempty,datetime=2006-01-02"`
	SubGroup    string `validate:"omitempty,max=32"`
}

// Report handles GET /clients/{clientCode}/profitability.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	params := reportParams{
		ClientCode:  chi.URLParam(r, "clientCode"),
		Mode:        r.URL.Query().Get("mode"),
		FiscalYear:  r.URL.Query().Get("fiscalYear"),
		FiscalMonth: r.URL.Query().Get("fiscalMonth"),
		StartDate:   r.URL.Query().Get("startDate"),
		EndDate:     r.URL.Query().Get("endDate"),
		SubGroup:    r.URL.Query().Get("subGroup"),
	}
	if err := h.validate.Struct(params); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+invalid[0].Field())
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request")
		return
	}

	report, err := h.service.Report(r.Context(), wip.Query{
		ClientCode: params.ClientCode,
		SubGroup:   params.SubGroup,
		Period: wip.PeriodFilter{
			Mode:        params.Mode,
			FiscalYear:  params.FiscalYear,
			FiscalMonth: params.FiscalMonth,
			StartDate:   params.StartDate,
			EndDate:     params.EndDate,
		},
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *wip.ValidationError
	var upErr *wip.UpstreamError
	switch {
	case errors.As(err, &vErr):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", vErr.Error())
	case errors.Is(err, wip.ErrClientNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "client not found")
	case errors.As(err, &upErr):
		h.logger.Error("profitability upstream failure",
			slog.String("path", r.URL.Path),
			slog.String("strategy", upErr.Strategy),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Unavailable", "ledger source unavailable")
	default:
		h.logger.Error("profitability report failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Routes mounts the profitability endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/clients/{clientCode}/profitability", h.Report)
}
