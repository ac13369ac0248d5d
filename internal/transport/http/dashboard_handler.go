package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "pangandash/internal/errors"
	"pangandash/internal/exporter"
	"pangandash/internal/middleware"
	"pangandash/internal/services"
	"pangandash/pkg/contracts/domain"
)

// multipartMemory is how much of an upload is kept in memory before
// spilling to a temporary file.
const multipartMemory = 8 << 20

// multipartOverhead is allowed on top of the file size for form boundaries
// and headers.
const multipartOverhead = 1 << 20

// DashboardHandler handles session, upload and analysis requests
type DashboardHandler struct {
	service        DashboardServiceInterface
	validator      *middleware.ValidationMiddleware
	query          *middleware.QueryParamValidator
	errorHandler   *apierrors.ErrorHandler
	maxUploadBytes int64
	maxTopN        int
	logger         *slog.Logger
}

// DashboardHandlerOptions limits request parameters.
type DashboardHandlerOptions struct {
	MaxUploadBytes int64
	MaxTopN        int
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, opts DashboardHandlerOptions, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	if opts.MaxTopN <= 0 {
		opts.MaxTopN = 50
	}
	return &DashboardHandler{
		service:        service,
		validator:      middleware.NewValidationMiddleware(logger),
		query:          middleware.NewQueryParamValidator(logger),
		errorHandler:   errorHandler,
		maxUploadBytes: opts.MaxUploadBytes,
		maxTopN:        opts.MaxTopN,
		logger:         logger.With(slog.String("component", "dashboard_handler")),
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/catalog", h.GetCatalog)
	r.Post("/sessions", h.CreateSession)

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/summary", h.GetSummary)
		r.Delete("/", h.DeleteSession)

		r.Route("/tables/{kind}", func(r chi.Router) {
			r.Use(h.KindCtx)

			r.With(middleware.MaxBodySize(h.uploadLimit())).Post("/", h.UploadTable)
			r.With(middleware.ContentTypeValidator("application/json")).Post("/sheets", h.ImportSheet)
			r.Get("/", h.GetTable)
			r.Get("/aggregates", h.GetAggregates)
			r.Get("/options/{column}", h.GetOptions)
			r.Get("/export", h.Export)
		})
	})

	return r
}

func (h *DashboardHandler) uploadLimit() int64 {
	if h.maxUploadBytes <= 0 {
		return 0
	}
	return h.maxUploadBytes + multipartOverhead
}

// KindCtx rejects unknown table kinds before any handler runs
func (h *DashboardHandler) KindCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := chi.URLParam(r, "kind")
		if _, err := domain.ParseTableKind(kind); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.UnknownTableKind(kind))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetCatalog handles GET /api/v1/catalog
func (h *DashboardHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.service.Catalog())
}

// CreateSession handles POST /api/v1/sessions
func (h *DashboardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+info.SessionID)
	respond(w, r, http.StatusCreated, info)
}

// GetSummary handles GET /api/v1/sessions/{sessionID}/summary
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, summary)
}

// DeleteSession handles DELETE /api/v1/sessions/{sessionID}
func (h *DashboardHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadTable handles POST /api/v1/sessions/{sessionID}/tables/{kind}
func (h *DashboardHandler) UploadTable(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.errorHandler.HandleError(w, r, uploadError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "a multipart field named 'file' is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.errorHandler.HandleError(w, r, uploadError(err))
		return
	}

	headerRow, err := h.headerRow(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := h.service.Upload(r.Context(), services.UploadRequest{
		SessionID: chi.URLParam(r, "sessionID"),
		Kind:      chi.URLParam(r, "kind"),
		Filename:  header.Filename,
		MIMEType:  header.Header.Get("Content-Type"),
		Data:      data,
		HeaderRow: headerRow,
		Sheet:     r.URL.Query().Get("sheet"),
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, res)
}

// ImportSheet handles POST /api/v1/sessions/{sessionID}/tables/{kind}/sheets
func (h *DashboardHandler) ImportSheet(w http.ResponseWriter, r *http.Request) {
	req := services.SheetImportRequest{
		SessionID: chi.URLParam(r, "sessionID"),
		Kind:      chi.URLParam(r, "kind"),
	}
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := h.service.ImportSheet(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, res)
}

// GetTable handles GET /api/v1/sessions/{sessionID}/tables/{kind}
func (h *DashboardHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	sel, err := h.query.Filter(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	view, err := h.service.Table(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "kind"), sel)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, view)
}

// GetAggregates handles GET /api/v1/sessions/{sessionID}/tables/{kind}/aggregates
func (h *DashboardHandler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	req, err := h.analyzeRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	view, err := h.service.Aggregates(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "kind"), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, view)
}

// GetOptions handles GET /api/v1/sessions/{sessionID}/tables/{kind}/options/{column}
func (h *DashboardHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Options(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "kind"), chi.URLParam(r, "column"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, view)
}

// Export handles GET /api/v1/sessions/{sessionID}/tables/{kind}/export
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	name, err := h.query.Enum(r, "format",
		[]string{string(exporter.FormatCSV), string(exporter.FormatXLSX), string(exporter.FormatGeoJSON)},
		string(exporter.FormatCSV))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	format, err := exporter.ParseFormat(name)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", err.Error()))
		return
	}

	req, err := h.analyzeRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	file, err := h.service.Export(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "kind"), format, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		h.logger.WarnContext(r.Context(), "Export write failed",
			slog.String("file", file.Filename),
			slog.String("error", err.Error()))
	}
}

func (h *DashboardHandler) analyzeRequest(r *http.Request) (services.AnalyzeRequest, error) {
	sel, err := h.query.Filter(r)
	if err != nil {
		return services.AnalyzeRequest{}, err
	}
	topN, err := h.query.Int(r, "top_n", 1, h.maxTopN, 0)
	if err != nil {
		return services.AnalyzeRequest{}, err
	}
	return services.AnalyzeRequest{Filter: sel, TopN: topN}, nil
}

// headerRow returns nil when the request does not override the header offset.
func (h *DashboardHandler) headerRow(r *http.Request) (*int, error) {
	if r.URL.Query().Get("header_row") == "" {
		return nil, nil
	}
	n, err := h.query.Int(r, "header_row", 0, 1000, 0)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return maxErr
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		return apierrors.ErrValidation("file", "request must be multipart/form-data")
	}
	return apierrors.InvalidRequestWithError(fmt.Errorf("read upload: %w", err))
}
