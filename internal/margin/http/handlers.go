package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/iva-margem/iva-margem/internal/export"
	"github.com/iva-margem/iva-margem/internal/ingest"
	"github.com/iva-margem/iva-margem/internal/margin"
	"github.com/iva-margem/iva-margem/internal/period"
	"github.com/iva-margem/iva-margem/internal/platform/httpx"
	"github.com/iva-margem/iva-margem/internal/session"
)

const maxUploadBytes = 32 << 20

// PDFRenderer converts HTML into a PDF document (Gotenberg in production).
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Handler serves the margin API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	pdf      PDFRenderer
}

// NewHandler builds a Handler instance. pdf may be nil, in which case PDF
// export responds 503.
func NewHandler(logger *slog.Logger, service *Service, pdf PDFRenderer) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		pdf:      pdf,
	}
}

// MountRoutes registers the margin API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/upload", h.uploadSAFT)
	r.Post("/upload-efatura", h.uploadEFatura)
	r.Post("/associate", h.associate)
	r.Post("/unlink", h.unlink)
	r.Post("/clear-associations", h.clearAssociations)
	r.Post("/auto-match", h.autoMatch)
	r.Post("/calculate", h.calculate)
	r.Post("/calculate-period", h.calculatePeriod)
	r.Get("/session/{id}", h.getSession)
	r.Delete("/session/{id}", h.deleteSession)
	r.Get("/export/excel/{id}", h.exportExcel)
	r.Get("/export/pdf/{id}/{year}/{quarter}", h.exportPDF)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, margin.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, margin.ErrNotFound), errors.Is(err, session.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, margin.ErrIntegrity):
		h.logger.Error("link graph integrity", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Integrity Error", "association graph inconsistent")
	default:
		h.logger.Error("margin api", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) decodeValid(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return fmt.Errorf("%w: %v", margin.ErrValidation, err)
	}
	if err := h.validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", margin.ErrValidation, err)
	}
	return nil
}

// ============================================================================
// UPLOADS
// ============================================================================

func (h *Handler) uploadSAFT(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.respondError(w, fmt.Errorf("%w: %v", margin.ErrValidation, err))
		return
	}
	data, err := readFormFile(r, "file")
	if err != nil {
		h.respondError(w, err)
		return
	}
	parsed, err := ingest.ParseSAFT(data)
	if err != nil {
		h.respondError(w, fmt.Errorf("%w: %v", margin.ErrValidation, err))
		return
	}
	sess, err := h.service.CreateSession(r.Context(), parsed)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sess)
}

func (h *Handler) uploadEFatura(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.respondError(w, fmt.Errorf("%w: %v", margin.ErrValidation, err))
		return
	}
	vendas, err := readFormFile(r, "vendas")
	if err != nil {
		h.respondError(w, err)
		return
	}
	compras, err := readFormFile(r, "compras")
	if err != nil {
		h.respondError(w, err)
		return
	}
	parsed, err := ingest.ParseEFatura(vendas, compras)
	if err != nil {
		h.respondError(w, fmt.Errorf("%w: %v", margin.ErrValidation, err))
		return
	}
	sess, err := h.service.CreateSession(r.Context(), parsed)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sess)
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: missing file %q", margin.ErrValidation, field)
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", field, err)
	}
	return data, nil
}

// ============================================================================
// ASSOCIATIONS
// ============================================================================

type associateRequest struct {
	SessionID string   `json:"session_id" validate:"required"`
	SaleIDs   []string `json:"sale_ids" validate:"required,min=1"`
	CostIDs   []string `json:"cost_ids" validate:"required,min=1"`
}

func (h *Handler) associate(w http.ResponseWriter, r *http.Request) {
	var req associateRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.service.Associate(r.Context(), req.SessionID, req.SaleIDs, req.CostIDs)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type unlinkRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	SaleID    string `json:"sale_id" validate:"required"`
	CostID    string `json:"cost_id" validate:"required"`
}

func (h *Handler) unlink(w http.ResponseWriter, r *http.Request) {
	var req unlinkRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.service.Unlink(r.Context(), req.SessionID, req.SaleID, req.CostID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

func (h *Handler) clearAssociations(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	removed, err := h.service.ClearAssociations(r.Context(), req.SessionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"links_removed": removed})
}

type autoMatchRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Threshold *int   `json:"threshold" validate:"omitempty,gte=0,lte=100"`
}

const defaultThreshold = 60

func (h *Handler) autoMatch(w http.ResponseWriter, r *http.Request) {
	var req autoMatchRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	threshold := defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	result, err := h.service.AutoMatch(r.Context(), req.SessionID, threshold)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// ============================================================================
// CALCULATIONS
// ============================================================================

type calculateRequest struct {
	SessionID string   `json:"session_id" validate:"required"`
	VATRate   *float64 `json:"vat_rate"`
}

const defaultVATRate = 23.0

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	rate := defaultVATRate
	if req.VATRate != nil {
		rate = *req.VATRate
	}
	outcome, err := h.service.Calculate(r.Context(), req.SessionID, rate)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, outcome)
}

type calculatePeriodRequest struct {
	SessionID string   `json:"session_id" validate:"required"`
	Year      int      `json:"year" validate:"required,gte=2000,lte=2100"`
	Quarter   int      `json:"quarter" validate:"required,gte=1,lte=4"`
	VATRate   *float64 `json:"vat_rate"`
	Region    string   `json:"region" validate:"omitempty"`
}

func (h *Handler) calculatePeriod(w http.ResponseWriter, r *http.Request) {
	var req calculatePeriodRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	rate, err := resolveRate(req.VATRate, req.Region)
	if err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.service.CalculatePeriod(r.Context(), req.SessionID, req.Year, req.Quarter, rate)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// resolveRate prefers an explicit rate, then a named region, then the
// continental default.
func resolveRate(rate *float64, region string) (float64, error) {
	if rate != nil {
		return *rate, nil
	}
	if region != "" {
		return period.RegionRate(region)
	}
	return defaultVATRate, nil
}

// ============================================================================
// SESSIONS
// ============================================================================

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// EXPORTS
// ============================================================================

func (h *Handler) exportExcel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rate := defaultVATRate
	if raw := r.URL.Query().Get("vat_rate"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.respondError(w, fmt.Errorf("%w: vat_rate %q", margin.ErrValidation, raw))
			return
		}
		rate = parsed
	}
	outcome, err := h.service.Calculate(r.Context(), id, rate)
	if err != nil {
		h.respondError(w, err)
		return
	}
	book, err := export.BuildWorkbook(outcome.Results, outcome.Summary, rate)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="iva-margem-%s.xlsx"`, time.Now().Format("20060102")))
	if err := book.Write(w); err != nil {
		h.logger.Error("write workbook", slog.Any("error", err))
	}
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "PDF Unavailable", "pdf renderer not configured")
		return
	}
	id := chi.URLParam(r, "id")
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.respondError(w, fmt.Errorf("%w: year", margin.ErrValidation))
		return
	}
	quarter, err := strconv.Atoi(chi.URLParam(r, "quarter"))
	if err != nil {
		h.respondError(w, fmt.Errorf("%w: quarter", margin.ErrValidation))
		return
	}
	rate, err := resolveRate(nil, r.URL.Query().Get("region"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.service.CalculatePeriod(r.Context(), id, year, quarter, rate)
	if err != nil {
		h.respondError(w, err)
		return
	}
	html, err := export.PeriodReportHTML(result)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render pdf", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "PDF Rendering Failed", "")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="iva-margem-%dT%d.pdf"`, year, quarter))
	_, _ = w.Write(pdf)
}
