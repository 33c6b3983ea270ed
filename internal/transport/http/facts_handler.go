package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/JdHeer/kbc-p3dh/internal/errors"
	"github.com/JdHeer/kbc-p3dh/internal/store"
	apiv1 "github.com/JdHeer/kbc-p3dh/pkg/contracts/api/v1"
)

// FactsHandler handles fact query HTTP requests with RFC 7807 compliance
type FactsHandler struct {
	service      FactsServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewFactsHandler creates a new facts handler with RFC 7807 error handling
func NewFactsHandler(service FactsServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *FactsHandler {
	return &FactsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "facts_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// Routes returns the fact routes, mounted under /api/facts. The static
// segments register before {id} so chi matches them first.
func (h *FactsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.ListFacts)
	r.Get("/export", h.ExportFacts)
	r.Get("/summary", h.GetSummary)
	r.Get("/{id}", h.GetFact)

	return r
}

// ListFacts handles GET /api/facts
func (h *FactsHandler) ListFacts(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	page, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "fact query failed",
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   page.Facts,
		"count":  len(page.Facts),
		"total":  page.Total,
		"offset": page.Offset,
	})
}

// GetFact handles GET /api/facts/{id}
func (h *FactsHandler) GetFact(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "Fact id must be an integer"))
		return
	}

	fact, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.errorHandler.HandleError(w, r, apierrors.NotFoundError("fact"))
			return
		}
		h.logger.ErrorContext(r.Context(), "fact lookup failed",
			slog.Int64("id", id),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   fact,
	})
}

// ExportFacts handles GET /api/facts/export, streaming the matching
// facts as a CSV attachment.
func (h *FactsHandler) ExportFacts(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filename := fmt.Sprintf("facts_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	written, err := h.service.Export(r.Context(), filter, w)
	if err != nil {
		// The header row has already gone out, so a problem document
		// would corrupt the CSV. Log and let the truncated body signal
		// the failure.
		h.logger.ErrorContext(r.Context(), "export failed mid-stream",
			slog.Int("rows_written", written),
			slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(r.Context(), "export served",
		slog.Int("rows", written),
		slog.String("filename", filename))
}

// GetSummary handles GET /api/facts/summary
func (h *FactsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "summary failed",
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   totals,
	})
}

// ListEntities handles GET /api/entities
func (h *FactsHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	h.listDimension(w, r, "entities", h.service.Entities)
}

// ListPeriods handles GET /api/periods
func (h *FactsHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	h.listDimension(w, r, "periods", h.service.Periods)
}

// ListTemplates handles GET /api/templates
func (h *FactsHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	h.listDimension(w, r, "templates", h.service.Templates)
}

// ListGroups handles GET /api/groups
func (h *FactsHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	h.listDimension(w, r, "groups", h.service.Groups)
}

func (h *FactsHandler) listDimension(w http.ResponseWriter, r *http.Request, name string, fn func(context.Context) ([]string, error)) {
	values, err := fn(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "dimension list failed",
			slog.String("dimension", name),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   values,
		"count":  len(values),
	})
}

// parseQuery builds the store filter from the request query string,
// validating it against the v1 contract first.
func (h *FactsHandler) parseQuery(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()

	req := apiv1.FactsQuery{
		Entity:    q.Get("entity"),
		LEI:       q.Get("lei"),
		Period:    q.Get("period"),
		Module:    q.Get("module"),
		Template:  q.Get("template"),
		Group:     q.Get("group"),
		RowLabel:  q.Get("row_label"),
		ColLabel:  q.Get("col_label"),
		Datapoint: q.Get("datapoint"),
	}

	var err error
	if req.Limit, err = parseIntParam(q.Get("limit")); err != nil {
		return store.Filter{}, apierrors.ErrValidation("limit", "Limit must be an integer")
	}
	if req.Offset, err = parseIntParam(q.Get("offset")); err != nil {
		return store.Filter{}, apierrors.ErrValidation("offset", "Offset must be an integer")
	}

	if err := h.validate.Struct(req); err != nil {
		return store.Filter{}, validationProblem(err)
	}

	return store.Filter{
		Entity:        req.Entity,
		LEI:           req.LEI,
		RefPeriod:     req.Period,
		Module:        req.Module,
		Template:      req.Template,
		TemplateGroup: req.Group,
		RowLabel:      req.RowLabel,
		ColLabel:      req.ColLabel,
		DatapointID:   req.Datapoint,
		Limit:         req.Limit,
		Offset:        req.Offset,
	}, nil
}

func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// validationProblem converts validator field errors into the API error
// shape so the problem document lists each offending field.
func validationProblem(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	verrs := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		verrs = append(verrs, apierrors.ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("failed %s validation", fe.Tag()),
		})
	}
	return apierrors.NewValidationErrors(verrs)
}
