package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"fleetdocs-service/internal/config"
	"fleetdocs-service/internal/notify"
	"fleetdocs-service/internal/reconcile"
	"fleetdocs-service/internal/schema"
	"fleetdocs-service/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var errUploadTooLarge = errors.New("upload too large")

type Handler struct {
	reconcileService *service.ReconcileService
	auth             *Authenticator
	config           *config.Config
	log              zerolog.Logger
}

func NewHandler(
	reconcileService *service.ReconcileService,
	auth *Authenticator,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		reconcileService: reconcileService,
		auth:             auth,
		config:           cfg,
		log:              log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", h.health)

	public := r.Group("/api/v1")
	{
		public.POST("/auth/token", h.createToken)
	}

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/reconciliations", h.createReconciliation)
		protected.POST("/reconciliations/export", h.exportReconciliation)
		protected.GET("/reconciliations", h.listRuns)
		protected.GET("/reconciliations/:id", h.getRun)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type tokenRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *Handler) createToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	token, exp, err := h.auth.Issue(req.Password)
	switch {
	case errors.Is(err, ErrAuthDisabled):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
		return
	case errors.Is(err, ErrWrongPassword):
		h.log.Warn().Str("remote_addr", c.ClientIP()).Msg("token request with wrong password")
		c.JSON(http.StatusUnauthorized, errorResponse(err.Error()))
		return
	case err != nil:
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": exp.UTC(),
	}))
}

type reconciliationResponse struct {
	RunID     string                     `json:"run_id"`
	Date      string                     `json:"date"`
	Policy    reconcile.DuplicatePolicy  `json:"policy"`
	Stats     reconcile.Stats            `json:"stats"`
	Unmatched []reconcile.UnmatchedPlate `json:"unmatched"`
	Warnings  []schema.DateParseWarning  `json:"warnings"`
	Columns   columnsResponse            `json:"columns"`
	Report    *notify.Report             `json:"report"`
}

type columnsResponse struct {
	Master schema.Resolution `json:"master"`
	Weekly schema.Resolution `json:"weekly"`
}

func (h *Handler) createReconciliation(c *gin.Context) {
	res, ok := h.runFromRequest(c)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, successResponse(reconciliationResponse{
		RunID:     res.RunID,
		Date:      res.Date.Format("2006-01-02"),
		Policy:    res.Merge.Policy,
		Stats:     res.Merge.Stats,
		Unmatched: nonNil(res.Merge.Unmatched),
		Warnings:  nonNil(res.Warnings),
		Columns:   columnsResponse{Master: res.Master.Resolution, Weekly: res.Weekly.Resolution},
		Report:    res.Report,
	}))
}

func (h *Handler) exportReconciliation(c *gin.Context) {
	res, ok := h.runFromRequest(c)
	if !ok {
		return
	}

	data, err := h.reconcileService.ExportXLSX(res)
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := fmt.Sprintf("maestro_actualizado_%s.xlsx", res.Date.Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("X-Run-ID", res.RunID)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := parseInt(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	runs, err := h.reconcileService.FindRuns(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(runs))
}

func (h *Handler) getRun(c *gin.Context) {
	run, err := h.reconcileService.GetRun(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(run))
}

// runFromRequest reads the master and weekly multipart uploads and runs a
// reconciliation. It writes the error response itself and reports false
// when the run did not happen.
func (h *Handler) runFromRequest(c *gin.Context) (*service.RunResult, bool) {
	now, err := h.parseNow(c.Query("now"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return nil, false
	}

	master, err := h.readUpload(c, "master")
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	weekly, err := h.readUpload(c, "weekly")
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}

	res, err := h.reconcileService.Run(c.Request.Context(), service.RunInput{
		Master: master,
		Weekly: weekly,
		Now:    now,
	})
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	return res, true
}

func (h *Handler) readUpload(c *gin.Context, field string) (service.Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return service.Upload{}, fmt.Errorf("%w: %s file is required", service.ErrInvalidInput, field)
	}

	limit := h.maxUploadBytes()
	if fh.Size > limit {
		return service.Upload{}, fmt.Errorf("%w: %s file exceeds %d bytes", errUploadTooLarge, field, limit)
	}

	data, err := readFileHeader(fh, limit)
	if err != nil {
		return service.Upload{}, fmt.Errorf("failed to read %s upload: %w", field, err)
	}
	return service.Upload{Name: fh.Filename, Data: data}, nil
}

func readFileHeader(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

func (h *Handler) maxUploadBytes() int64 {
	mb := int64(20)
	if h.config != nil && h.config.HTTP.MaxUploadMB > 0 {
		mb = h.config.HTTP.MaxUploadMB
	}
	return mb << 20
}

// parseNow reads the optional run date override. The date is interpreted
// in the configured timezone.
func (h *Handler) parseNow(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	loc := time.UTC
	if h.config != nil {
		loc = h.config.Location()
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("now must be a YYYY-MM-DD date")
	}
	return t, nil
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var sre *schema.SchemaResolutionError
	switch {
	case errors.As(err, &sre):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"role":    sre.Role,
			"mode":    sre.Mode,
			"missing": sre.Missing,
			"found":   sre.Found,
		})
	case errors.Is(err, reconcile.ErrMergeInput):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
	case errors.Is(err, errUploadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
