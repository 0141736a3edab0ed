package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tribune/internal/audit"
	apperrors "tribune/internal/errors"
	"tribune/internal/middleware"
	"tribune/internal/models"
	"tribune/internal/pagination"
)

// Diagnostics exposes the pipeline's absorbed-failure counters.
type Diagnostics interface {
	Dropped() uint64
	Failed() uint64
}

// AuditHandler handles audit trail requests.
type AuditHandler struct {
	auditService audit.Servicer
	diagnostics  Diagnostics
	retention    time.Duration
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditService audit.Servicer, diagnostics Diagnostics, retention time.Duration) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		diagnostics:  diagnostics,
		retention:    retention,
	}
}

// QueryEventsRequest represents the query string of the audit list endpoint.
type QueryEventsRequest struct {
	pagination.PageRequest
	OrgID         string   `form:"org_id"`
	AllOrgs       bool     `form:"all_orgs"`
	Actions       []string `form:"action" binding:"omitempty,dive,action_type"`
	ResourceTypes []string `form:"resource_type" binding:"omitempty,dive,resource_type"`
	ResourceID    string   `form:"resource_id"`
	ActorID       string   `form:"actor_id"`
	Outcome       string   `form:"outcome" binding:"omitempty,outcome"`
	Search        string   `form:"search" binding:"omitempty,max=255"`
	From          string   `form:"from"`
	To            string   `form:"to"`
}

// QueryEvents returns a filtered, paginated page of audit events, newest
// first. Tenant callers are pinned to their own organization; platform
// callers may pass org_id or all_orgs=true.
func (h *AuditHandler) QueryEvents(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req QueryEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidFilter, err.Error()))
		return
	}

	filter, err := h.buildFilter(claims, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, err := h.auditService.Query(c.Request.Context(), filter, req.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// ExportEventsRequest represents the query string of the export endpoint.
type ExportEventsRequest struct {
	QueryEventsRequest
	Format string `form:"format" binding:"omitempty,export_format"`
}

// ExportEvents streams the filtered result set as a download. Rows are
// fetched in bounded batches, so the export may exceed any single page.
func (h *AuditHandler) ExportEvents(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExportEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidFilter, err.Error()))
		return
	}
	if req.Format == "" {
		req.Format = string(audit.FormatCSV)
	}
	format, err := audit.ParseExportFormat(req.Format)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter, err := h.buildFilter(claims, &req.QueryEventsRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	contentType := "text/csv"
	if format == audit.FormatJSON {
		contentType = "application/json"
	}
	filename := fmt.Sprintf("audit-export-%s.%s", time.Now().UTC().Format("2006-01-02"), format)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	actor := audit.Actor{ID: claims.UserID, Name: claims.DisplayName, Origin: c.ClientIP()}
	if err := h.auditService.Export(c.Request.Context(), actor, filter, format, c.Writer); err != nil {
		// Headers may already be written; abort the stream and log via the
		// central error path without attempting a second response body.
		_ = c.Error(err)
		c.Abort()
		return
	}
}

// PurgeRequest optionally overrides the configured retention horizon.
type PurgeRequest struct {
	RetentionDays int `json:"retention_days" binding:"omitempty,min=1"`
}

// Purge deletes events older than the retention horizon in batches and
// returns the deleted count. Guarded by the ops key middleware.
func (h *AuditHandler) Purge(c *gin.Context) {
	var req PurgeRequest
	// An empty body means "use the configured horizon".
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	retention := h.retention
	if req.RetentionDays > 0 {
		retention = time.Duration(req.RetentionDays) * 24 * time.Hour
	}
	horizon := time.Now().UTC().Add(-retention)

	deleted, err := h.auditService.Purge(c.Request.Context(), horizon)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": deleted,
		"horizon": horizon.Format(time.RFC3339),
	})
}

// Diagnostics reports the pipeline's drop and failure counters. Platform
// callers only.
func (h *AuditHandler) Diagnostics(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !claims.IsPlatform() {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queue_dropped":  h.diagnostics.Dropped(),
		"write_failures": h.diagnostics.Failed(),
	})
}

// buildFilter converts request parameters into a service filter, enforcing
// tenant scope: only platform callers may widen beyond their own
// organization.
func (h *AuditHandler) buildFilter(claims *middleware.JWTClaims, req *QueryEventsRequest) (audit.Filter, error) {
	var filter audit.Filter

	if claims.IsPlatform() {
		filter.AllOrgs = req.AllOrgs
		filter.OrgID = req.OrgID
	} else {
		if req.AllOrgs || (req.OrgID != "" && req.OrgID != claims.OrgID) {
			return audit.Filter{}, apperrors.ErrForbidden
		}
		filter.OrgID = claims.OrgID
	}

	for _, s := range req.Actions {
		action, err := models.ParseActionType(s)
		if err != nil {
			return audit.Filter{}, apperrors.WithMessage(apperrors.ErrInvalidFilter, err.Error())
		}
		filter.Actions = append(filter.Actions, action)
	}
	for _, s := range req.ResourceTypes {
		resource, err := models.ParseResourceType(s)
		if err != nil {
			return audit.Filter{}, apperrors.WithMessage(apperrors.ErrInvalidFilter, err.Error())
		}
		filter.ResourceTypes = append(filter.ResourceTypes, resource)
	}
	if req.Outcome != "" {
		outcome, err := models.ParseOutcome(req.Outcome)
		if err != nil {
			return audit.Filter{}, apperrors.WithMessage(apperrors.ErrInvalidFilter, err.Error())
		}
		filter.Outcome = &outcome
	}

	filter.ResourceID = req.ResourceID
	filter.ActorID = req.ActorID
	filter.Search = req.Search

	if req.From != "" {
		from, err := parseFlexibleTime(req.From)
		if err != nil {
			return audit.Filter{}, apperrors.WithMessage(apperrors.ErrInvalidFilter, err.Error())
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := parseFlexibleTime(req.To)
		if err != nil {
			return audit.Filter{}, apperrors.WithMessage(apperrors.ErrInvalidFilter, err.Error())
		}
		filter.To = &to
	}

	return filter, nil
}

// parseFlexibleTime accepts RFC 3339 timestamps or bare dates.
func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
