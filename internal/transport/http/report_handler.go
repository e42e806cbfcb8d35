package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"sbscli/internal/errors"
	"sbscli/internal/middleware"
	"sbscli/internal/services"
	"sbscli/internal/store"
	"sbscli/pkg/contracts/domain"
)

type ctxKey string

const firmIDKey ctxKey = "firm_id"

// ReportService is the read API the report handler needs.
type ReportService interface {
	Summaries(ctx context.Context, filter store.SummaryFilter) (*services.SummaryPage, error)
	FirmPanel(ctx context.Context, firmID string) (*services.FirmPanel, error)
	LatestRun(ctx context.Context) (*domain.RunRecord, error)
}

// ReportHandler serves summary tables, firm panels and run metadata.
type ReportHandler struct {
	service      ReportService
	validator    *middleware.Validator
	errorHandler *errors.ErrorHandler
	logger       *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(service ReportService, validator *middleware.Validator, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = middleware.NewValidator(logger)
	}
	return &ReportHandler{
		service:      service,
		validator:    validator,
		errorHandler: errors.NewErrorHandler(logger),
		logger:       logger.With(slog.String("handler", "report")),
	}
}

// Routes returns the report routes, mounted under /api/v1.
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/summaries/{level}", h.GetSummaries)
	r.Route("/firms/{firmID}", func(r chi.Router) {
		r.Use(h.firmCtx)
		r.Get("/panel", h.GetFirmPanel)
	})
	r.Get("/runs/latest", h.GetLatestRun)

	return r
}

func (h *ReportHandler) firmCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		firmID := chi.URLParam(r, "firmID")
		if err := h.validator.ValidateVar("firm_id", firmID, "required,firmid"); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), firmIDKey, firmID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSummaries handles GET /summaries/{level}?year=&sector=&region=
func (h *ReportHandler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	year, err := middleware.QueryInt(r, "year")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := store.SummaryFilter{
		Level:      domain.AggregationLevel(chi.URLParam(r, "level")),
		Year:       year,
		SectorCode: q.Get("sector"),
		RegionCode: q.Get("region"),
	}
	if err := h.validator.ValidateStruct(filter); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	page, err := h.service.Summaries(r.Context(), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, page)
}

// GetFirmPanel handles GET /firms/{firmID}/panel
func (h *ReportHandler) GetFirmPanel(w http.ResponseWriter, r *http.Request) {
	firmID, _ := r.Context().Value(firmIDKey).(string)

	panel, err := h.service.FirmPanel(r.Context(), firmID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, panel)
}

// GetLatestRun handles GET /runs/latest
func (h *ReportHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.LatestRun(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, run)
}
